package redis

import (
	"context"
	"strings"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/redis/go-redis/v9"
)

var incrementUsage = redis.NewScript(incrementUsageScript)

type usageStore struct {
	client *redis.Client
}

// Increment atomically adds seconds to the website's counter for date
func (s *usageStore) Increment(ctx context.Context, website, date string, seconds int64) error {
	website = storage.NormalizeWebsite(website)

	keys := []string{usageKey(date, website), usageIndexKey(date)}
	args := []interface{}{website, date, seconds, usageTTLSeconds}

	return incrementUsage.Run(ctx, s.client, keys, args...).Err()
}

// Get retrieves the counter for website on date
func (s *usageStore) Get(ctx context.Context, website, date string) (*storage.UsageCounter, error) {
	data, err := s.client.HGetAll(ctx, usageKey(date, storage.NormalizeWebsite(website))).Result()
	if err != nil {
		return nil, err
	}

	return parseUsageCounter(data)
}

// DeleteBefore removes counters dated before cutoffDate.
// Counters also carry a 90 day TTL, so this mostly catches shorter retention.
func (s *usageStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	var cursor uint64
	var deletedCount int

	for {
		var keys []string
		var err error
		keys, cursor, err = s.client.Scan(ctx, cursor, usageIndexMatch, 100).Result()
		if err != nil {
			return deletedCount, err
		}

		for _, indexKey := range keys {
			date := strings.TrimPrefix(indexKey, usageIndexPre)
			if date >= cutoffDate {
				continue
			}

			websites, err := s.client.SMembers(ctx, indexKey).Result()
			if err != nil {
				return deletedCount, err
			}

			toDelete := make([]string, 0, len(websites)+1)
			for _, website := range websites {
				toDelete = append(toDelete, usageKey(date, website))
			}
			toDelete = append(toDelete, indexKey)

			deleted, err := s.client.Del(ctx, toDelete...).Result()
			if err != nil {
				return deletedCount, err
			}
			// The index key itself is not a counter.
			deletedCount += int(deleted) - 1
		}

		if cursor == 0 {
			break
		}
	}

	return deletedCount, nil
}
