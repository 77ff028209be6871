package redis

import (
	"context"
	"sort"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var upsertLimit = redis.NewScript(upsertLimitScript)

type limitStore struct {
	client *redis.Client
}

// Upsert creates or updates the limit keyed by (website, type)
func (s *limitStore) Upsert(ctx context.Context, limit storage.Limit) (*storage.Limit, error) {
	website := storage.NormalizeWebsite(limit.Website)

	id := limit.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	keys := []string{limitKey(limit.Type, website), limitIndexKey(limit.Type)}
	args := []interface{}{id, website, limit.Minutes, string(limit.Type), now}

	if err := upsertLimit.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return nil, err
	}

	return s.Get(ctx, website, limit.Type)
}

// Get retrieves the limit for website of the given type
func (s *limitStore) Get(ctx context.Context, website string, limitType storage.LimitType) (*storage.Limit, error) {
	data, err := s.client.HGetAll(ctx, limitKey(limitType, storage.NormalizeWebsite(website))).Result()
	if err != nil {
		return nil, err
	}

	return parseLimit(data)
}

// List returns limits of one type, or of every type when limitType is empty
func (s *limitStore) List(ctx context.Context, limitType storage.LimitType) ([]storage.Limit, error) {
	types := storage.LimitTypes
	if limitType != "" {
		types = []storage.LimitType{limitType}
	}

	limits := []storage.Limit{}
	for _, t := range types {
		websites, err := s.client.SMembers(ctx, limitIndexKey(t)).Result()
		if err != nil {
			return nil, err
		}
		sort.Strings(websites)

		if len(websites) == 0 {
			continue
		}

		// Use pipeline for batch retrieval
		pipe := s.client.Pipeline()
		cmds := make([]*redis.MapStringStringCmd, len(websites))
		for i, website := range websites {
			cmds[i] = pipe.HGetAll(ctx, limitKey(t, website))
		}

		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, err
		}

		for _, cmd := range cmds {
			data, err := cmd.Result()
			if err != nil || len(data) == 0 {
				continue
			}

			limit, err := parseLimit(data)
			if err == nil {
				limits = append(limits, *limit)
			}
		}
	}

	return limits, nil
}

// Delete removes the limit for website of one type, or of both types
func (s *limitStore) Delete(ctx context.Context, website string, limitType storage.LimitType) (int, error) {
	website = storage.NormalizeWebsite(website)

	types := storage.LimitTypes
	if limitType != "" {
		types = []storage.LimitType{limitType}
	}

	pipe := s.client.TxPipeline()
	dels := make([]*redis.IntCmd, len(types))
	for i, t := range types {
		dels[i] = pipe.Del(ctx, limitKey(t, website))
		pipe.SRem(ctx, limitIndexKey(t), website)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	var deleted int
	for _, cmd := range dels {
		deleted += int(cmd.Val())
	}

	return deleted, nil
}
