package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/google/uuid"
)

type limitStore struct {
	db *sql.DB
}

// Upsert creates or updates the limit keyed by (website, type)
func (s *limitStore) Upsert(ctx context.Context, limit storage.Limit) (*storage.Limit, error) {
	website := storage.NormalizeWebsite(limit.Website)

	id := limit.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO limits (id, website, minutes, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(website, type) DO UPDATE SET
			minutes = excluded.minutes,
			updated_at = excluded.updated_at
	`, id, website, limit.Minutes, string(limit.Type), now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting limit: %w", err)
	}

	return s.Get(ctx, website, limit.Type)
}

// Get retrieves the limit for website of the given type
func (s *limitStore) Get(ctx context.Context, website string, limitType storage.LimitType) (*storage.Limit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, website, minutes, type, created_at, updated_at
		FROM limits
		WHERE website = ? AND type = ?
	`, storage.NormalizeWebsite(website), string(limitType))

	limit, err := scanLimit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return limit, err
}

// List returns limits of one type, or all limits when limitType is empty
func (s *limitStore) List(ctx context.Context, limitType storage.LimitType) ([]storage.Limit, error) {
	query := `SELECT id, website, minutes, type, created_at, updated_at FROM limits`
	args := []interface{}{}
	if limitType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(limitType))
	}
	query += ` ORDER BY CASE type WHEN 'daily' THEN 0 ELSE 1 END, website`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying limits: %w", err)
	}
	defer rows.Close()

	limits := []storage.Limit{}
	for rows.Next() {
		limit, err := scanLimit(rows)
		if err != nil {
			return nil, err
		}
		limits = append(limits, *limit)
	}

	return limits, rows.Err()
}

// Delete removes the limit for website of one type, or of both types
func (s *limitStore) Delete(ctx context.Context, website string, limitType storage.LimitType) (int, error) {
	query := `DELETE FROM limits WHERE website = ?`
	args := []interface{}{storage.NormalizeWebsite(website)}
	if limitType != "" {
		query += ` AND type = ?`
		args = append(args, string(limitType))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting limit: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLimit(row scanner) (*storage.Limit, error) {
	var limit storage.Limit
	var limitType, createdAt, updatedAt string

	if err := row.Scan(&limit.ID, &limit.Website, &limit.Minutes, &limitType, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if limit.Type, err = storage.ParseLimitType(limitType); err != nil {
		return nil, err
	}
	if limit.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if limit.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &limit, nil
}
