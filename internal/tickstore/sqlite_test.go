package tickstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tickbar/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ticks.db")
	s, err := Open(dbPath, time.UTC)
	if err != nil {
		t.Fatalf("Open(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	})
	return s
}

func TestAppendAndReadRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	minute := time.Date(2024, 6, 14, 10, 16, 0, 0, time.UTC)
	ticks := []domain.Tick{
		{ObservedAt: minute.Add(2 * time.Second), Price: 100, Volume: 1},
		{ObservedAt: minute.Add(20 * time.Second), Price: 102, Volume: 2},
		{ObservedAt: minute.Add(45 * time.Second), Price: 99, Volume: 3},
		// Next minute, must not appear in the window read.
		{ObservedAt: minute.Add(61 * time.Second), Price: 200, Volume: 4},
	}
	for _, tk := range ticks {
		if err := s.Append(ctx, tk); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.ReadRange(ctx, minute, minute.Add(time.Minute))
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadRange returned %d ticks, want 3", len(got))
	}
	if got[0].Price != 100 || got[1].Price != 102 || got[2].Price != 99 {
		t.Errorf("ticks out of insertion order: %v", got)
	}
	if !got[0].ObservedAt.Equal(minute.Add(2 * time.Second)) {
		t.Errorf("first tick ObservedAt = %v, want %v", got[0].ObservedAt, minute.Add(2*time.Second))
	}
}

func TestReadRangeEmptyWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	minute := time.Date(2024, 6, 14, 10, 16, 0, 0, time.UTC)
	got, err := s.ReadRange(ctx, minute, minute.Add(time.Minute))
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadRange on empty store returned %d ticks, want 0", len(got))
	}
}

func TestDistinctMinutes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC)
	// Two ticks in 10:00, one in 10:05, one in 10:06.
	for _, tk := range []domain.Tick{
		{ObservedAt: base.Add(5 * time.Second), Price: 1},
		{ObservedAt: base.Add(30 * time.Second), Price: 2},
		{ObservedAt: base.Add(5*time.Minute + 10*time.Second), Price: 3},
		{ObservedAt: base.Add(6*time.Minute + 59*time.Second), Price: 4},
	} {
		if err := s.Append(ctx, tk); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	minutes, err := s.DistinctMinutes(ctx, time.Time{})
	if err != nil {
		t.Fatalf("DistinctMinutes: %v", err)
	}
	want := []time.Time{base, base.Add(5 * time.Minute), base.Add(6 * time.Minute)}
	if len(minutes) != len(want) {
		t.Fatalf("DistinctMinutes returned %d minutes, want %d: %v", len(minutes), len(want), minutes)
	}
	for i := range want {
		if !minutes[i].Equal(want[i]) {
			t.Errorf("minute[%d] = %v, want %v", i, minutes[i], want[i])
		}
	}

	// A restricted scan drops the earlier minute.
	recent, err := s.DistinctMinutes(ctx, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("DistinctMinutes(since): %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("restricted scan returned %d minutes, want 2", len(recent))
	}
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tk := domain.Tick{ObservedAt: base.Add(time.Duration(i) * 24 * time.Hour), Price: 10}
		if err := s.Append(ctx, tk); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	removed, err := s.PruneBefore(ctx, base.Add(2*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 2 {
		t.Errorf("PruneBefore removed %d rows, want 2", removed)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d after prune, want 3", n)
	}
}
