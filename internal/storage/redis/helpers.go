package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
)

// parseSlice decodes a sorted-set member into a TimeSlice. Members are
// "<sequence>|<json>"; a bare JSON member is accepted as well.
func parseSlice(member string) (*storage.TimeSlice, error) {
	if !strings.HasPrefix(member, "{") {
		if _, body, ok := strings.Cut(member, "|"); ok {
			member = body
		}
	}

	var slice storage.TimeSlice
	if err := json.Unmarshal([]byte(member), &slice); err != nil {
		return nil, fmt.Errorf("failed to decode slice: %w", err)
	}
	return &slice, nil
}

// parseLimit converts a Redis hash to Limit
func parseLimit(data map[string]string) (*storage.Limit, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	minutes, err := strconv.ParseInt(data["minutes"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse minutes: %w", err)
	}

	limitType, err := storage.ParseLimitType(data["type"])
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Limit{
		ID:        data["id"],
		Website:   data["website"],
		Minutes:   minutes,
		Type:      limitType,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// parseUsageCounter converts a Redis hash to UsageCounter
func parseUsageCounter(data map[string]string) (*storage.UsageCounter, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	seconds, err := strconv.ParseInt(data["seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seconds: %w", err)
	}

	return &storage.UsageCounter{
		Website: data["website"],
		Date:    data["date"],
		Seconds: seconds,
	}, nil
}
