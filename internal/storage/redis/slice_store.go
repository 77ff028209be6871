package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/redis/go-redis/v9"
)

var appendSlice = redis.NewScript(appendSliceScript)

type sliceStore struct {
	client *redis.Client
}

// Append records a slice in the global and per-domain sorted sets
func (s *sliceStore) Append(ctx context.Context, slice storage.TimeSlice) error {
	member, err := json.Marshal(slice)
	if err != nil {
		return fmt.Errorf("failed to encode slice: %w", err)
	}

	keys := []string{slicesKey, domainSlicesKey(storage.NormalizeWebsite(slice.Domain)), slicesSeqKey}
	args := []interface{}{slice.Timestamp.UnixMilli(), string(member)}

	return appendSlice.Run(ctx, s.client, keys, args...).Err()
}

// ListSince returns all slices recorded at or after since
func (s *sliceStore) ListSince(ctx context.Context, since time.Time) ([]storage.TimeSlice, error) {
	members, err := s.client.ZRangeByScore(ctx, slicesKey, scoreRange(since)).Result()
	if err != nil {
		return nil, err
	}

	slices := make([]storage.TimeSlice, 0, len(members))
	for _, m := range members {
		slice, err := parseSlice(m)
		if err != nil {
			return nil, err
		}
		slices = append(slices, *slice)
	}

	return slices, nil
}

// SumDomainSince totals the seconds recorded for domain at or after since
func (s *sliceStore) SumDomainSince(ctx context.Context, domain string, since time.Time) (int64, error) {
	members, err := s.client.ZRangeByScore(ctx, domainSlicesKey(storage.NormalizeWebsite(domain)), scoreRange(since)).Result()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, m := range members {
		slice, err := parseSlice(m)
		if err != nil {
			return 0, err
		}
		total += slice.TimeSpent
	}

	return total, nil
}

// DeleteBefore removes slices recorded before cutoff from both indexes
func (s *sliceStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	upper := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	members, err := s.client.ZRangeByScore(ctx, slicesKey, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	var removed []*redis.IntCmd
	for _, m := range members {
		// Without the domain the member cannot leave its domain index, so
		// it stays in both.
		slice, err := parseSlice(m)
		if err != nil {
			continue
		}
		pipe.ZRem(ctx, domainSlicesKey(storage.NormalizeWebsite(slice.Domain)), m)
		removed = append(removed, pipe.ZRem(ctx, slicesKey, m))
	}

	if len(removed) == 0 {
		return 0, nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	deleted := 0
	for _, cmd := range removed {
		deleted += int(cmd.Val())
	}
	return deleted, nil
}

func scoreRange(since time.Time) *redis.ZRangeBy {
	lower := "-inf"
	if !since.IsZero() {
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}
	return &redis.ZRangeBy{Min: lower, Max: "+inf"}
}
