package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	candidateCacheTTL    = 60 * time.Second
	candidateCachePrefix = "articles:candidates:"

	// 每个 viewer 保留的浏览历史条数
	viewHistoryCap = 200

	insertBatchSize = 100
)

// Translation 外部翻译服务写入的标题与摘要
type Translation struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Article 入库后的规范化文章，以 URL 为唯一键
type Article struct {
	ID         string  `gorm:"primaryKey;size:40" json:"id"`
	Title      string  `gorm:"size:512" json:"title"`
	Summary    string  `gorm:"type:text" json:"summary"`
	URL        string  `gorm:"size:1024;uniqueIndex" json:"url"`
	GUID       string  `gorm:"size:1024;index" json:"guid"`
	SourceID   uint    `gorm:"index" json:"sourceId"`
	SourceCode string  `gorm:"size:64;index" json:"sourceCode"`
	SourceName string  `gorm:"size:128" json:"source"`
	SourceTier string  `gorm:"size:16" json:"sourceTier"`
	TrustScore float64 `json:"trustScore"`
	Category   string  `gorm:"size:16;index" json:"category"`
	Language   string  `gorm:"size:8" json:"language"`

	Tags      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`
	TeamIDs   datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"teamIds"`
	LeagueIDs datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"leagueIds"`
	PlayerIDs datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"playerIds"`

	PublishedAt      time.Time                   `gorm:"index" json:"publishedAt"`
	ClusterID        string                      `gorm:"size:64;index" json:"clusterId"`
	DuplicateCount   int                         `json:"duplicateCount"`
	DuplicateSources datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"duplicateSources"`

	ViewCount  int64 `json:"viewCount"`
	IsFeatured bool  `gorm:"index" json:"isFeatured"`
	IsBreaking bool  `json:"isBreaking"`

	Translations datatypes.JSONType[map[string]Translation] `gorm:"type:jsonb" json:"translations"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ArticleKey 已入库事件的判重键（url:/guid: 前缀），覆盖同簇的全部成员
type ArticleKey struct {
	Key       string `gorm:"column:dedup_key;primaryKey;type:text"`
	ArticleID string `gorm:"size:40;index"`
	CreatedAt time.Time
}

// Translation 返回指定语言的翻译
func (a Article) Translation(lang string) (Translation, bool) {
	if lang == "" {
		return Translation{}, false
	}
	tr, ok := a.Translations.Data()[lang]
	if !ok || tr.Title == "" {
		return Translation{}, false
	}
	return tr, true
}

func newArticleRow(it processor.Article) Article {
	return Article{
		ID:               it.ID,
		Title:            truncateRunesDB(toValidUTF8(it.Title), 512),
		Summary:          toValidUTF8(it.Summary),
		URL:              it.URL,
		GUID:             truncateRunesDB(toValidUTF8(it.GUID), 1024),
		SourceID:         it.SourceID,
		SourceCode:       it.SourceCode,
		SourceName:       it.SourceName,
		SourceTier:       string(it.SourceTier),
		TrustScore:       it.TrustScore,
		Category:         string(it.Category),
		Language:         it.Language,
		Tags:             nonNil(it.Tags),
		TeamIDs:          nonNil(it.TeamIDs),
		LeagueIDs:        nonNil(it.LeagueIDs),
		PlayerIDs:        nonNil(it.PlayerIDs),
		PublishedAt:      it.PublishedAt,
		ClusterID:        it.ClusterID,
		DuplicateCount:   it.DuplicateCount,
		DuplicateSources: nonNil(it.DuplicateSources),
		IsFeatured:       it.IsFeatured,
		IsBreaking:       it.IsBreaking,
		Translations:     datatypes.NewJSONType(map[string]Translation{}),
	}
}

func nonNil(s []string) datatypes.JSONSlice[string] {
	if s == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](s)
}

// SaveBatch 保存一批代表文章，返回新写入的条数。
// 代表文章或任一同簇成员的 url/guid 已入库时整簇跳过，
// 并发写入撞上唯一索引时按 DO NOTHING 处理
func (s *Store) SaveBatch(ctx context.Context, items []processor.Article) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	var all []string
	for _, it := range items {
		all = append(all, it.DedupKeys()...)
	}
	seen, err := s.existingKeys(ctx, all)
	if err != nil {
		return 0, err
	}

	rows, keys := pendingRows(items, seen)
	if len(rows) == 0 {
		return 0, nil
	}

	saved := 0
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, insertBatchSize)
		if res.Error != nil {
			return res.Error
		}
		saved = int(res.RowsAffected)
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&keys, insertBatchSize).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: save batch: %w", err)
	}

	if saved > 0 {
		s.invalidateCandidates(ctx)
	}
	return saved, nil
}

// pendingRows 过滤掉已入库或本批已出现的事件，返回待写入的文章与判重键
func pendingRows(items []processor.Article, seen map[string]struct{}) ([]Article, []ArticleKey) {
	rows := make([]Article, 0, len(items))
	var keys []ArticleKey
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		itemKeys := it.DedupKeys()
		dup := slices.ContainsFunc(itemKeys, func(k string) bool {
			_, ok := seen[k]
			return ok
		})
		if dup {
			continue
		}
		for _, k := range itemKeys {
			seen[k] = struct{}{}
			keys = append(keys, ArticleKey{Key: k, ArticleID: it.ID})
		}
		rows = append(rows, newArticleRow(it))
	}
	return rows, keys
}

func (s *Store) existingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	var found []string
	err := s.DB.WithContext(ctx).Model(&ArticleKey{}).
		Where("dedup_key IN ?", keys).
		Pluck("dedup_key", &found).Error
	if err != nil {
		return nil, fmt.Errorf("storage: lookup existing: %w", err)
	}

	out := make(map[string]struct{}, len(found))
	for _, k := range found {
		out[k] = struct{}{}
	}
	return out, nil
}

// CandidateQuery 排序前的硬过滤条件
type CandidateQuery struct {
	Category       string     `json:"category,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
	Search         string     `json:"q,omitempty"`
	ExcludeSources []string   `json:"exclude,omitempty"`
	Limit          int        `json:"limit,omitempty"`
}

func (q CandidateQuery) normalized() CandidateQuery {
	if q.Limit < 0 {
		q.Limit = 0
	}
	q.Search = strings.TrimSpace(q.Search)
	if len(q.ExcludeSources) > 0 {
		ex := make([]string, 0, len(q.ExcludeSources))
		for _, s := range q.ExcludeSources {
			if s = strings.TrimSpace(s); s != "" {
				ex = append(ex, s)
			}
		}
		slices.Sort(ex)
		q.ExcludeSources = slices.Compact(ex)
	}
	return q
}

func (q CandidateQuery) cacheKey() string {
	bs, _ := json.Marshal(q)
	sum := sha1.Sum(bs)
	return candidateCachePrefix + hex.EncodeToString(sum[:])
}

// ListCandidates 按硬过滤条件返回候选文章（发布时间倒序），并使用 Redis 做短缓存。
// Limit 为 0 时返回全部命中行
func (s *Store) ListCandidates(ctx context.Context, q CandidateQuery) ([]Article, error) {
	q = q.normalized()
	cacheKey := q.cacheKey()

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	db := s.DB.WithContext(ctx).Model(&Article{})
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if q.From != nil {
		db = db.Where("published_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("published_at <= ?", *q.To)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		db = db.Where("(title ILIKE ? OR summary ILIKE ?)", p, p)
	}
	if len(q.ExcludeSources) > 0 {
		db = db.Where("source_code NOT IN ? AND source_name NOT IN ?", q.ExcludeSources, q.ExcludeSources)
	}

	db = db.Order("published_at DESC")
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var list []Article
	if err := db.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("storage: list candidates: %w", err)
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, candidateCacheTTL).Err()
		}
	}
	return list, nil
}

// invalidateCandidates 文章变更后清掉候选缓存，失败只记日志
func (s *Store) invalidateCandidates(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	var keys []string
	iter := s.Redis.Scan(ctx, 0, candidateCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("scan candidate cache failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("invalidate candidate cache failed", "error", err)
	}
}

// likePattern 转义 LIKE 通配符后两侧加 %
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// IncrementViews 浏览数 +1
func (s *Store) IncrementViews(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&Article{}).
		Where("id IN ?", ids).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("storage: increment views: %w", err)
	}
	return nil
}

func viewHistoryKey(viewer string) string {
	return "viewer:history:" + viewer
}

// PushViewHistory 把本次返回的文章 id 记入 viewer 的浏览历史，最新的在前
func (s *Store) PushViewHistory(ctx context.Context, viewer string, ids []string) error {
	if s.Redis == nil || viewer == "" || len(ids) == 0 {
		return nil
	}
	key := viewHistoryKey(viewer)
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	pipe := s.Redis.TxPipeline()
	pipe.LPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, 0, viewHistoryCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: push view history: %w", err)
	}
	return nil
}

// ViewHistory 返回 viewer 最近浏览的文章 id
func (s *Store) ViewHistory(ctx context.Context, viewer string, limit int) ([]string, error) {
	if s.Redis == nil || viewer == "" {
		return nil, nil
	}
	if limit <= 0 || limit > viewHistoryCap {
		limit = viewHistoryCap
	}
	ids, err := s.Redis.LRange(ctx, viewHistoryKey(viewer), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: view history: %w", err)
	}
	return ids, nil
}

// DeleteExpired 删除发布时间早于 before 且未置顶的文章，连同其判重键
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Session(&gorm.Session{NewDB: true}).Model(&Article{}).
			Select("id").
			Where("is_featured = ? AND published_at < ?", false, before)
		if err := tx.Where("article_id IN (?)", expired).Delete(&ArticleKey{}).Error; err != nil {
			return err
		}
		res := tx.Where("is_featured = ? AND published_at < ?", false, before).Delete(&Article{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired: %w", err)
	}
	if deleted > 0 {
		s.invalidateCandidates(ctx)
	}
	return deleted, nil
}

// SetFeatured 设置或取消置顶
func (s *Store) SetFeatured(ctx context.Context, id string, featured bool) error {
	res := s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", id).Update("is_featured", featured)
	if res.Error != nil {
		return fmt.Errorf("storage: set featured: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidateCandidates(ctx)
	return nil
}

// SaveTranslation 写入某个语言的标题与摘要
func (s *Store) SaveTranslation(ctx context.Context, id, lang string, tr Translation) error {
	var a Article
	err := s.DB.WithContext(ctx).Select("id", "translations").Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storage: load article %s: %w", id, err)
	}

	m := map[string]Translation{}
	for k, v := range a.Translations.Data() {
		m[k] = v
	}
	m[lang] = Translation{Title: toValidUTF8(tr.Title), Summary: toValidUTF8(tr.Summary)}

	err = s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", id).
		Update("translations", datatypes.NewJSONType(m)).Error
	if err != nil {
		return fmt.Errorf("storage: save translation: %w", err)
	}
	s.invalidateCandidates(ctx)
	return nil
}
