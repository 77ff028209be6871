package redis

import (
	"fmt"

	"github.com/goodtune/tabtime/internal/storage"
)

const (
	slicesKey       = "tabtime:slices"
	slicesSeqKey    = "tabtime:slices:seq"
	usageIndexMatch = "tabtime:usage:index:*"
	usageIndexPre   = "tabtime:usage:index:"

	// usageTTLSeconds bounds counter lifetime even if retention never runs.
	usageTTLSeconds = 7776000
)

func domainSlicesKey(domain string) string {
	return fmt.Sprintf("tabtime:slices:domain:%s", domain)
}

func limitKey(limitType storage.LimitType, website string) string {
	return fmt.Sprintf("tabtime:limit:%s:%s", limitType, website)
}

func limitIndexKey(limitType storage.LimitType) string {
	return fmt.Sprintf("tabtime:limits:%s", limitType)
}

func usageKey(date, website string) string {
	return fmt.Sprintf("tabtime:usage:%s:%s", date, website)
}

func usageIndexKey(date string) string {
	return usageIndexPre + date
}
