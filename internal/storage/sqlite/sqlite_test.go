package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tabtime/internal/config"
	"github.com/goodtune/tabtime/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "tabtime.db")})
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSliceStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	slices := store.Slices()

	base := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	input := []storage.TimeSlice{
		{ID: "a", Domain: "github.com", TimeSpent: 120, Productive: true, Timestamp: base, Date: "2024-03-13", Week: "2024-W11"},
		{ID: "b", Domain: "youtube.com", TimeSpent: 60, Timestamp: base, Date: "2024-03-13", Week: "2024-W11"},
		{ID: "c", Domain: "github.com", TimeSpent: 30, Productive: true, Timestamp: base.Add(-24 * time.Hour), Date: "2024-03-12", Week: "2024-W11"},
	}
	for _, s := range input {
		if err := slices.Append(ctx, s); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	all, err := slices.ListSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 slices, got %d", len(all))
	}
	// Equal timestamps keep insertion order.
	if all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
		t.Errorf("Expected order c,a,b, got %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}
	if !all[1].Productive || all[2].Productive {
		t.Error("Expected productive flags to round-trip")
	}
	if !all[1].Timestamp.Equal(base) {
		t.Errorf("Expected timestamp %s, got %s", base, all[1].Timestamp)
	}

	total, err := slices.SumDomainSince(ctx, "github.com", base)
	if err != nil {
		t.Fatalf("SumDomainSince failed: %v", err)
	}
	if total != 120 {
		t.Errorf("Expected 120 seconds, got %d", total)
	}

	deleted, err := slices.DeleteBefore(ctx, base)
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
}

func TestLimitStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	limits := store.Limits()

	first, err := limits.Upsert(ctx, storage.Limit{Website: "youtube.com", Minutes: 30, Type: storage.LimitDaily})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	second, err := limits.Upsert(ctx, storage.Limit{Website: "youtube.com ", Minutes: 10, Type: storage.LimitDaily})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if second.ID != first.ID || second.Minutes != 10 {
		t.Errorf("Expected in-place update of %s, got %+v", first.ID, second)
	}

	_, _ = limits.Upsert(ctx, storage.Limit{Website: "youtube.com", Minutes: 120, Type: storage.LimitWeekly})

	all, _ := limits.List(ctx, "")
	if len(all) != 2 {
		t.Errorf("Expected 2 limits, got %d", len(all))
	}
	daily, _ := limits.List(ctx, storage.LimitDaily)
	if len(daily) != 1 {
		t.Errorf("Expected 1 daily limit, got %d", len(daily))
	}

	deleted, err := limits.Delete(ctx, "youtube.com", "")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected both limits deleted, got %d", deleted)
	}
	if _, err := limits.Get(ctx, "youtube.com", storage.LimitWeekly); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUsageStore_IncrementConcurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	usage := store.Usage()

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := usage.Increment(ctx, "github.com", "2024-03-13", 30); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	counter, err := usage.Get(ctx, "github.com", "2024-03-13")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if counter.Seconds != workers*30 {
		t.Errorf("Expected %d seconds, got %d", workers*30, counter.Seconds)
	}

	deleted, _ := usage.DeleteBefore(ctx, "2024-03-14")
	if deleted != 1 {
		t.Errorf("Expected 1 deleted counter, got %d", deleted)
	}
}
