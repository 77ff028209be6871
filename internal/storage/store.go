package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Slices() SliceStore
	Limits() LimitStore
	Usage() UsageStore
}

// SliceStore manages the append-only log of attributed time slices.
type SliceStore interface {
	Append(ctx context.Context, slice TimeSlice) error
	// ListSince returns slices with Timestamp >= since in timestamp order,
	// ties in insertion order. The zero time lists everything.
	ListSince(ctx context.Context, since time.Time) ([]TimeSlice, error)
	// SumDomainSince totals TimeSpent for domain over slices with
	// Timestamp >= since.
	SumDomainSince(ctx context.Context, domain string, since time.Time) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// LimitStore manages quota rules, unique per (website, type).
type LimitStore interface {
	// Upsert creates the limit or updates minutes of the existing one,
	// preserving its ID and CreatedAt. The stored record is returned.
	Upsert(ctx context.Context, limit Limit) (*Limit, error)
	Get(ctx context.Context, website string, limitType LimitType) (*Limit, error)
	// List returns limits of the given type, or all limits when limitType
	// is empty.
	List(ctx context.Context, limitType LimitType) ([]Limit, error)
	// Delete removes the limit for website of the given type, or of both
	// types when limitType is empty. It returns the number removed.
	Delete(ctx context.Context, website string, limitType LimitType) (int, error)
}

// UsageStore manages the per-day display counters.
type UsageStore interface {
	// Increment atomically adds seconds to the (website, date) counter,
	// creating it when absent.
	Increment(ctx context.Context, website, date string, seconds int64) error
	Get(ctx context.Context, website, date string) (*UsageCounter, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}
