package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/dedup"
	"github.com/LJTian/KickoffHub/internal/metrics"
	"github.com/LJTian/KickoffHub/internal/processor"
)

// ErrInvalidCategory 手动触发时传入了未知分类
var ErrInvalidCategory = errors.New("pipeline: invalid category")

// SourceRegistry 数据源登记表
type SourceRegistry interface {
	ListActiveSources(ctx context.Context) ([]collector.Source, error)
	MarkFetched(ctx context.Context, ids []uint, at time.Time) error
}

// ArticleSaver 幂等写入，返回新增条数
type ArticleSaver interface {
	SaveBatch(ctx context.Context, items []processor.Article) (int, error)
}

// Options 手动触发时可选的数据源与分类覆盖
type Options struct {
	SourceCodes []string `json:"sources" form:"sources"`
	Category    string   `json:"category" form:"category"`
}

// Summary 一次采集的汇总
type Summary struct {
	Fetched          int   `json:"fetched"`
	UniqueAfterDedup int   `json:"uniqueAfterDedup"`
	Saved            int   `json:"saved"`
	SourcesSucceeded int   `json:"sourcesSucceeded"`
	SourcesFailed    int   `json:"sourcesFailed"`
	DurationMs       int64 `json:"durationMs"`
}

type Pipeline struct {
	Sources   SourceRegistry
	Fetcher   collector.Fetcher
	Processor *processor.Processor
	Clusterer *dedup.Clusterer
	Store     ArticleSaver
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

func New(sources SourceRegistry, fetcher collector.Fetcher, store ArticleSaver, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		Sources:   sources,
		Fetcher:   fetcher,
		Processor: processor.NewProcessor(),
		Clusterer: dedup.NewClusterer(),
		Store:     store,
		Metrics:   m,
		Now:       time.Now,
	}
}

type fetchResult struct {
	items []collector.RawArticle
	err   error
}

// Run 执行一轮采集：拉取 → 清洗打分 → 去重 → 入库。
// 单个数据源失败只计数不中断；存储失败作为整轮错误返回，已写入的行保留
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	start := p.now()
	var sum Summary

	override := processor.Category("")
	if opts.Category != "" {
		c, ok := processor.ParseCategory(opts.Category)
		if !ok {
			return sum, fmt.Errorf("%w: %q", ErrInvalidCategory, opts.Category)
		}
		override = c
	}

	slog.Info("collect run started", "sources", opts.SourceCodes, "category", opts.Category)

	sources, err := p.Sources.ListActiveSources(ctx)
	if err != nil {
		p.finish(&sum, start, err)
		return sum, fmt.Errorf("pipeline: list sources: %w", err)
	}
	sources = selectSources(sources, opts.SourceCodes)

	results := make([]fetchResult, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := p.Fetcher.Fetch(ctx, src)
			results[i] = fetchResult{items: items, err: err}
		}()
	}
	wg.Wait()

	byID := make(map[uint]collector.Source, len(sources))
	var raw []collector.RawArticle
	var fetchedIDs []uint
	for i, src := range sources {
		byID[src.ID] = src
		r := results[i]
		if r.err != nil {
			sum.SourcesFailed++
			p.Metrics.IncSourceFetch(src.Code, metrics.StatusFailure)
			slog.Warn("source fetch failed", "source", src.Code, "error", r.err)
			continue
		}
		sum.SourcesSucceeded++
		p.Metrics.IncSourceFetch(src.Code, metrics.StatusSuccess)
		slog.Info("source fetched", "source", src.Code, "items", len(r.items))
		fetchedIDs = append(fetchedIDs, src.ID)
		raw = append(raw, r.items...)
	}
	sum.Fetched = len(raw)

	if err := p.Sources.MarkFetched(ctx, fetchedIDs, p.now()); err != nil {
		slog.Warn("mark sources fetched failed", "error", err)
	}

	processed := p.Processor.Process(raw, byID)
	if override != "" {
		for i := range processed {
			processed[i] = processed[i].WithCategory(override)
		}
	}

	reps := p.Clusterer.Deduplicate(processed)
	sum.UniqueAfterDedup = len(reps)

	saved, err := p.Store.SaveBatch(ctx, reps)
	if err != nil {
		p.finish(&sum, start, err)
		return sum, fmt.Errorf("pipeline: save: %w", err)
	}
	sum.Saved = saved

	p.finish(&sum, start, nil)
	return sum, nil
}

func (p *Pipeline) finish(sum *Summary, start time.Time, err error) {
	elapsed := p.now().Sub(start)
	sum.DurationMs = elapsed.Milliseconds()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailure
	}
	p.Metrics.ObserveRun(status, elapsed.Seconds())
	p.Metrics.AddArticles(sum.Fetched, sum.UniqueAfterDedup, sum.Saved)

	if err != nil {
		slog.Error("collect run failed", "error", err, "fetched", sum.Fetched, "duration_ms", sum.DurationMs)
		return
	}
	slog.Info("collect run done",
		"fetched", sum.Fetched,
		"unique", sum.UniqueAfterDedup,
		"saved", sum.Saved,
		"sources_ok", sum.SourcesSucceeded,
		"sources_failed", sum.SourcesFailed,
		"duration_ms", sum.DurationMs,
	)
}

// selectSources 按 code 过滤；codes 为空表示全部
func selectSources(all []collector.Source, codes []string) []collector.Source {
	if len(codes) == 0 {
		return all
	}
	out := make([]collector.Source, 0, len(codes))
	for _, s := range all {
		if slices.Contains(codes, s.Code) {
			out = append(out, s)
		}
	}
	return out
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
