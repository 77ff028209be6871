package policy

import (
	"context"

	"github.com/goodtune/tabtime/internal/policy/opa"
	"github.com/goodtune/tabtime/internal/storage"
)

// Decision is the outcome of evaluating a domain's limits.
type Decision struct {
	Domain      string            `json:"domain"`
	ShouldBlock bool              `json:"shouldBlock"`
	LimitType   storage.LimitType `json:"limitType,omitempty"`
	UsedSeconds int64             `json:"usedSeconds"`
	// LimitSeconds is the threshold of the limit that decided the outcome,
	// or -1 when no limit applies.
	LimitSeconds int64 `json:"limitSeconds"`
}

// QuotaRule decides whether usage has reached a limit.
type QuotaRule interface {
	Exceeded(ctx context.Context, in opa.QuotaInput) (bool, error)
}
