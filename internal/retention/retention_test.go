package retention

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type row struct {
	id        string
	published time.Time
	featured  bool
}

// memStore 与存储层的删除条件保持一致
type memStore struct {
	rows []row
	err  error
}

func (m *memStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var keep []row
	var n int64
	for _, r := range m.rows {
		if !r.featured && r.published.Before(before) {
			n++
			continue
		}
		keep = append(keep, r)
	}
	m.rows = keep
	return n, nil
}

func newSweeper(store Deleter) *Sweeper {
	s := NewSweeper(store, 0, nil)
	s.Now = func() time.Time { return now }
	return s
}

func TestSweepKeepsFeaturedAndFreshArticles(t *testing.T) {
	store := &memStore{rows: []row{
		{id: "old", published: now.Add(-31 * 24 * time.Hour)},
		{id: "old-featured", published: now.Add(-90 * 24 * time.Hour), featured: true},
		{id: "fresh", published: now.Add(-29 * 24 * time.Hour)},
	}}
	s := newSweeper(store)

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	var left []string
	for _, r := range store.rows {
		left = append(left, r.id)
	}
	if !slices.Equal(left, []string{"old-featured", "fresh"}) {
		t.Fatalf("remaining = %v", left)
	}
}

func TestCutoffUsesDefaultWindow(t *testing.T) {
	s := newSweeper(&memStore{})
	if s.Window != DefaultWindow {
		t.Fatalf("Window = %v, want default", s.Window)
	}
	if !s.Cutoff().Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("Cutoff = %v", s.Cutoff())
	}
}

func TestSweepWrapsStoreError(t *testing.T) {
	boom := errors.New("db down")
	if _, err := newSweeper(&memStore{err: boom}).Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
