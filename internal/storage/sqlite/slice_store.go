package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
)

type sliceStore struct {
	db *sql.DB
}

// Append inserts a slice
func (s *sliceStore) Append(ctx context.Context, slice storage.TimeSlice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_slices (id, domain, url, productive, time_spent, timestamp_ms, timestamp, date, week)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		slice.ID,
		storage.NormalizeWebsite(slice.Domain),
		slice.URL,
		slice.Productive,
		slice.TimeSpent,
		slice.Timestamp.UnixMilli(),
		slice.Timestamp.Format(time.RFC3339Nano),
		slice.Date,
		slice.Week,
	)
	if err != nil {
		return fmt.Errorf("inserting slice: %w", err)
	}
	return nil
}

// ListSince returns slices at or after since in timestamp then insertion order
func (s *sliceStore) ListSince(ctx context.Context, since time.Time) ([]storage.TimeSlice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, url, productive, time_spent, timestamp, date, week
		FROM time_slices
		WHERE timestamp_ms >= ?
		ORDER BY timestamp_ms, seq
	`, lowerBound(since))
	if err != nil {
		return nil, fmt.Errorf("querying slices: %w", err)
	}
	defer rows.Close()

	slices := []storage.TimeSlice{}
	for rows.Next() {
		var slice storage.TimeSlice
		var ts string
		if err := rows.Scan(&slice.ID, &slice.Domain, &slice.URL, &slice.Productive, &slice.TimeSpent, &ts, &slice.Date, &slice.Week); err != nil {
			return nil, fmt.Errorf("scanning slice: %w", err)
		}
		slice.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		slices = append(slices, slice)
	}

	return slices, rows.Err()
}

// SumDomainSince totals seconds for domain at or after since
func (s *sliceStore) SumDomainSince(ctx context.Context, domain string, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(time_spent), 0)
		FROM time_slices
		WHERE domain = ? AND timestamp_ms >= ?
	`, storage.NormalizeWebsite(domain), lowerBound(since)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing slices: %w", err)
	}
	return total, nil
}

// DeleteBefore removes slices recorded before cutoff
func (s *sliceStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM time_slices WHERE timestamp_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting slices: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func lowerBound(since time.Time) int64 {
	if since.IsZero() {
		return -1 << 62
	}
	return since.UnixMilli()
}
