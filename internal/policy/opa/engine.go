package opa

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

// QuotaQuery is the rule every quota policy must define.
const QuotaQuery = "data.tabtime.quota.exceeded"

//go:embed quota.rego
var defaultQuotaPolicy string

// Config holds OPA engine configuration
type Config struct {
	// PolicyFile replaces the built-in quota policy when set.
	PolicyFile string
}

// QuotaInput is the fact set a quota policy is evaluated against.
type QuotaInput struct {
	Website      string
	Type         string
	UsedSeconds  int64
	LimitSeconds int64
}

// Engine wraps the OPA rego engine for quota evaluation
type Engine struct {
	config Config
	logger zerolog.Logger

	mu         sync.RWMutex
	quotaQuery rego.PreparedEvalQuery
}

// NewEngine creates a new OPA engine
func NewEngine(config Config, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		config: config,
		logger: logger.With().Str("component", "opa").Logger(),
	}

	if err := e.Reload(); err != nil {
		return nil, err
	}

	source := "builtin"
	if config.PolicyFile != "" {
		source = config.PolicyFile
	}
	e.logger.Info().Str("policy", source).Msg("OPA engine initialized")

	return e, nil
}

// LoadPolicy returns the configured policy source, falling back to the
// built-in policy.
func LoadPolicy(policyFile string) (name, content string, err error) {
	if policyFile == "" {
		return "quota.rego", defaultQuotaPolicy, nil
	}

	data, err := os.ReadFile(policyFile)
	if err != nil {
		return "", "", fmt.Errorf("failed to read policy file %s: %w", policyFile, err)
	}
	return policyFile, string(data), nil
}

// ValidatePolicy parses a policy module and checks it declares the quota
// package.
func ValidatePolicy(name, content string) error {
	module, err := ast.ParseModule(name, content)
	if err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", name, err)
	}

	if pkg := module.Package.Path.String(); pkg != "data.tabtime.quota" {
		return fmt.Errorf("policy file %s declares package %s, want tabtime.quota", name, pkg)
	}

	return nil
}

// Reload re-reads and re-prepares the quota policy
func (e *Engine) Reload() error {
	name, content, err := LoadPolicy(e.config.PolicyFile)
	if err != nil {
		return err
	}

	if err := ValidatePolicy(name, content); err != nil {
		return err
	}

	r := rego.New(
		rego.Query(QuotaQuery),
		rego.Module(name, content),
	)

	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("failed to prepare quota query: %w", err)
	}

	e.mu.Lock()
	e.quotaQuery = query
	e.mu.Unlock()

	e.logger.Debug().Str("policy", name).Msg("Quota query prepared")

	return nil
}

// Exceeded evaluates whether the input is over quota
func (e *Engine) Exceeded(ctx context.Context, in QuotaInput) (bool, error) {
	startTime := time.Now()

	e.mu.RLock()
	query := e.quotaQuery
	e.mu.RUnlock()

	input := map[string]interface{}{
		"website":       in.Website,
		"type":          in.Type,
		"used_seconds":  in.UsedSeconds,
		"limit_seconds": in.LimitSeconds,
	}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("quota query evaluation failed: %w", err)
	}

	e.logger.Debug().Dur("duration_ms", time.Since(startTime)).Msg("Quota query evaluated")

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, fmt.Errorf("no results from quota query")
	}

	exceeded, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("quota result is not a boolean: %T", results[0].Expressions[0].Value)
	}

	return exceeded, nil
}
