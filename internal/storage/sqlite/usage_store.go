package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goodtune/tabtime/internal/storage"
)

type usageStore struct {
	db *sql.DB
}

// Increment atomically adds seconds to the website's counter for date
func (s *usageStore) Increment(ctx context.Context, website, date string, seconds int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_counters (website, date, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(website, date) DO UPDATE SET seconds = seconds + excluded.seconds
	`, storage.NormalizeWebsite(website), date, seconds)
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	return nil
}

// Get retrieves the counter for website on date
func (s *usageStore) Get(ctx context.Context, website, date string) (*storage.UsageCounter, error) {
	var counter storage.UsageCounter
	err := s.db.QueryRowContext(ctx, `
		SELECT website, date, seconds FROM usage_counters WHERE website = ? AND date = ?
	`, storage.NormalizeWebsite(website), date).Scan(&counter.Website, &counter.Date, &counter.Seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	return &counter, nil
}

// DeleteBefore removes counters dated before cutoffDate
func (s *usageStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE date < ?`, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("deleting usage: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
