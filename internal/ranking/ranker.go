package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/LJTian/KickoffHub/internal/scoring"
	"github.com/LJTian/KickoffHub/internal/storage"
)

// 相邻两篇分差小于该值时按发布时间排序
const tieThreshold = 5

const defaultViewTimeout = 3 * time.Second

// CandidateStore 候选池来源
type CandidateStore interface {
	ListCandidates(ctx context.Context, q storage.CandidateQuery) ([]storage.Article, error)
}

// ViewRecorder 浏览数与浏览历史，写入失败只记日志
type ViewRecorder interface {
	IncrementViews(ctx context.Context, ids []string) error
	PushViewHistory(ctx context.Context, viewer string, ids []string) error
}

// ScoredArticle 附带本次请求的相关度
type ScoredArticle struct {
	storage.Article
	RelevanceScore float64 `json:"relevanceScore"`
	IsTranslated   bool    `json:"isTranslated"`
}

type Result struct {
	Articles []ScoredArticle `json:"articles"`
	Total    int             `json:"total"`
	HasMore  bool            `json:"hasMore"`
}

func emptyResult() Result {
	return Result{Articles: []ScoredArticle{}}
}

type Ranker struct {
	Store       CandidateStore
	Views       ViewRecorder
	Now         func() time.Time
	ViewTimeout time.Duration
}

func NewRanker(store CandidateStore, views ViewRecorder) *Ranker {
	return &Ranker{Store: store, Views: views, Now: time.Now, ViewTimeout: defaultViewTimeout}
}

// List 全量打分、排序之后再分页。非法过滤条件返回空结果
func (r *Ranker) List(ctx context.Context, req Request) (Result, error) {
	if err := req.Filters.validate(); err != nil {
		return emptyResult(), nil
	}
	now := r.now()

	exclude := append([]string{}, req.Filters.ExcludeSources...)
	exclude = append(exclude, req.Prefs.BlockedSources...)

	candidates, err := r.Store.ListCandidates(ctx, storage.CandidateQuery{
		Category:       req.Filters.Category,
		From:           req.Filters.From,
		To:             req.Filters.To,
		Search:         req.Filters.Search,
		ExcludeSources: exclude,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ranking: load candidates: %w", err)
	}

	scored := make([]ScoredArticle, 0, len(candidates))
	for _, a := range candidates {
		scored = append(scored, score(a, req.Prefs, now))
	}
	sortScored(scored)

	limit := req.Page.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	total := len(scored)
	start := min(max(req.Page.Offset, 0), total)
	end := min(start+limit, total)

	res := Result{
		Articles: scored[start:end],
		Total:    total,
		HasMore:  end < total,
	}
	r.recordViews(req.Prefs.ViewerID, res.Articles)
	return res, nil
}

func score(a storage.Article, prefs scoring.Preferences, now time.Time) ScoredArticle {
	s := ScoredArticle{
		Article: a,
		RelevanceScore: scoring.Relevance(scoring.RelevanceInput{
			TrustScore:  a.TrustScore,
			Category:    a.Category,
			TeamIDs:     a.TeamIDs,
			PlayerIDs:   a.PlayerIDs,
			LeagueIDs:   a.LeagueIDs,
			IsFeatured:  a.IsFeatured,
			IsBreaking:  a.IsBreaking,
			PublishedAt: a.PublishedAt,
			ViewCount:   a.ViewCount,
		}, prefs, now),
	}
	if tr, ok := a.Translation(prefs.Language); ok {
		s.Title = tr.Title
		if tr.Summary != "" {
			s.Summary = tr.Summary
		}
		s.IsTranslated = true
	}
	return s
}

// sortScored 分数高者在前；分差小于 tieThreshold 时较新的在前
func sortScored(items []ScoredArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if math.Abs(a.RelevanceScore-b.RelevanceScore) < tieThreshold {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.RelevanceScore > b.RelevanceScore
	})
}

// recordViews 异步写入，不阻塞响应
func (r *Ranker) recordViews(viewer string, page []ScoredArticle) {
	if r.Views == nil || len(page) == 0 {
		return
	}
	ids := make([]string, len(page))
	for i, a := range page {
		ids[i] = a.ID
	}
	timeout := r.ViewTimeout
	if timeout <= 0 {
		timeout = defaultViewTimeout
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := errors.Join(
			r.Views.IncrementViews(ctx, ids),
			r.Views.PushViewHistory(ctx, viewer, ids),
		)
		if err != nil {
			slog.Warn("record views failed", "viewer", viewer, "error", err)
		}
	}()
}

func (r *Ranker) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
