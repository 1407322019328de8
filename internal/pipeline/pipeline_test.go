package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/metrics"
	"github.com/LJTian/KickoffHub/internal/processor"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	sources []collector.Source
	err     error
	marked  []uint
}

func (f *fakeRegistry) ListActiveSources(ctx context.Context) ([]collector.Source, error) {
	return f.sources, f.err
}

func (f *fakeRegistry) MarkFetched(ctx context.Context, ids []uint, at time.Time) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string][]collector.RawArticle
	errs    map[string]error
	called  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, src collector.Source) ([]collector.RawArticle, error) {
	f.mu.Lock()
	f.called = append(f.called, src.Code)
	f.mu.Unlock()
	if err := f.errs[src.Code]; err != nil {
		return nil, err
	}
	var out []collector.RawArticle
	for _, it := range f.results[src.Code] {
		it.SourceID = src.ID
		out = append(out, it)
	}
	return out, nil
}

// fakeSaver 与存储层相同的判重约定：任一 DedupKeys 已存在即跳过
type fakeSaver struct {
	rows map[string]processor.Article
	keys map[string]struct{}
	err  error
}

func (f *fakeSaver) SaveBatch(ctx context.Context, items []processor.Article) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.rows == nil {
		f.rows = map[string]processor.Article{}
		f.keys = map[string]struct{}{}
	}
	n := 0
	for _, it := range items {
		keys := it.DedupKeys()
		dup := slices.ContainsFunc(keys, func(k string) bool {
			_, ok := f.keys[k]
			return ok
		})
		if dup {
			continue
		}
		for _, k := range keys {
			f.keys[k] = struct{}{}
		}
		f.rows[it.URL] = it
		n++
	}
	return n, nil
}

func newFixture() (*Pipeline, *fakeRegistry, *fakeFetcher, *fakeSaver) {
	reg := &fakeRegistry{sources: []collector.Source{
		{ID: 1, Code: "bbc-sport", Name: "BBC Sport", Tier: collector.TierOne},
		{ID: 2, Code: "broken", Name: "Broken Feed", Tier: collector.TierTwo},
		{ID: 3, Code: "fan-blog", Name: "Fan Blog", Tier: collector.TierThree},
	}}
	fetcher := &fakeFetcher{
		results: map[string][]collector.RawArticle{
			"bbc-sport": {
				{Title: "Liverpool confirm Salah contract extension until 2027", URL: "https://example.com/a1", GUID: "a1", PublishedAt: now.Add(-time.Hour)},
				{Title: "Arsenal 2-1 Chelsea: match report", URL: "https://example.com/a2", GUID: "a2", PublishedAt: now.Add(-2 * time.Hour)},
			},
			"fan-blog": {
				{Title: "Liverpool confirm Salah contract extension until 2027", URL: "https://example.com/c1", GUID: "c1", PublishedAt: now.Add(-30 * time.Minute)},
			},
		},
		errs: map[string]error{"broken": errors.New("503")},
	}
	saver := &fakeSaver{}

	p := New(reg, fetcher, saver, metrics.New())
	fixed := func() time.Time { return now }
	p.Now = fixed
	p.Processor.Now = fixed
	p.Clusterer.Now = fixed
	return p, reg, fetcher, saver
}

func TestRunSummaryToleratesFailedSource(t *testing.T) {
	p, reg, _, saver := newFixture()

	sum, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := Summary{Fetched: 3, UniqueAfterDedup: 2, Saved: 2, SourcesSucceeded: 2, SourcesFailed: 1}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	if !slices.Equal(reg.marked, []uint{1, 3}) {
		t.Fatalf("marked = %v, want only successful sources", reg.marked)
	}

	rep, ok := saver.rows["https://example.com/a1"]
	if !ok {
		t.Fatalf("tier1 article should be the saved representative, rows=%v", saver.rows)
	}
	if rep.DuplicateCount != 1 || !slices.Equal(rep.DuplicateSources, []string{"Fan Blog [tier3]"}) {
		t.Fatalf("unexpected duplicate info: %d %v", rep.DuplicateCount, rep.DuplicateSources)
	}
	if rep.SourceCode != "bbc-sport" {
		t.Fatalf("SourceCode = %q", rep.SourceCode)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	p, _, _, saver := newFixture()
	ctx := context.Background()

	if _, err := p.Run(ctx, Options{}); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	rows := len(saver.rows)

	sum, err := p.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if sum.Saved != 0 {
		t.Fatalf("second run saved %d, want 0", sum.Saved)
	}
	if len(saver.rows) != rows {
		t.Fatalf("row count changed: %d -> %d", rows, len(saver.rows))
	}
}

func TestRerunLaterWithSwitchedRepresentativeSavesNothing(t *testing.T) {
	reg := &fakeRegistry{sources: []collector.Source{
		{ID: 1, Code: "goal", Name: "Goal", Tier: collector.TierTwo},
		{ID: 2, Code: "bbc-sport", Name: "BBC Sport", Tier: collector.TierOne},
	}}
	title := "Arsenal beat Spurs in north London derby"
	fetcher := &fakeFetcher{results: map[string][]collector.RawArticle{
		"goal":      {{Title: title, URL: "https://example.com/goal", GUID: "goal-1", PublishedAt: now.Add(-50 * time.Minute)}},
		"bbc-sport": {{Title: title, URL: "https://example.com/bbc", GUID: "bbc-1", PublishedAt: now.Add(-3 * time.Hour)}},
	}}
	saver := &fakeSaver{}
	p := New(reg, fetcher, saver, nil)

	clock := now
	tick := func() time.Time { return clock }
	p.Now, p.Processor.Now, p.Clusterer.Now = tick, tick, tick
	ctx := context.Background()

	first, err := p.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if first.Saved != 1 {
		t.Fatalf("first run saved %d, want 1", first.Saved)
	}
	if _, ok := saver.rows["https://example.com/goal"]; !ok {
		t.Fatalf("fresher tier2 article should win the first run, rows=%v", saver.rows)
	}

	// 同一份快照 15 分钟后重跑，代表文章换成 BBC
	clock = now.Add(15 * time.Minute)
	second, err := p.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if second.UniqueAfterDedup != 1 || second.Saved != 0 {
		t.Fatalf("second run = %+v, want 1 unique and 0 saved", second)
	}
	if len(saver.rows) != 1 {
		t.Fatalf("one event stored as %d rows: %v", len(saver.rows), saver.rows)
	}
}

func TestRunSourceAndCategoryOverride(t *testing.T) {
	p, _, fetcher, saver := newFixture()

	sum, err := p.Run(context.Background(), Options{SourceCodes: []string{"bbc-sport"}, Category: "analysis"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !slices.Equal(fetcher.called, []string{"bbc-sport"}) {
		t.Fatalf("fetched sources = %v", fetcher.called)
	}
	if sum.SourcesSucceeded != 1 || sum.SourcesFailed != 0 || sum.Saved != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	for _, a := range saver.rows {
		if a.Category != processor.CategoryAnalysis || a.Tags[0] != "analysis" {
			t.Fatalf("category override not applied: %q %v", a.Category, a.Tags)
		}
	}
}

func TestRunRejectsUnknownCategory(t *testing.T) {
	p, _, fetcher, _ := newFixture()
	_, err := p.Run(context.Background(), Options{Category: "gossip"})
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("err = %v, want ErrInvalidCategory", err)
	}
	if len(fetcher.called) != 0 {
		t.Fatalf("no source should be fetched on invalid input")
	}
}

func TestRunStorageFailureIsRunLevelError(t *testing.T) {
	p, _, _, saver := newFixture()
	boom := errors.New("connection refused")
	saver.err = boom

	sum, err := p.Run(context.Background(), Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}
	if sum.Fetched != 3 || sum.Saved != 0 {
		t.Fatalf("partial summary = %+v", sum)
	}
}

func TestRunRegistryFailure(t *testing.T) {
	p, reg, _, _ := newFixture()
	reg.err = errors.New("db down")
	if _, err := p.Run(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error when sources cannot be listed")
	}
}
