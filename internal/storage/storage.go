package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNotFound 按 id 操作的文章不存在
var ErrNotFound = errors.New("storage: not found")

// Source 数据源登记表
type Source struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Code           string     `gorm:"size:64;uniqueIndex" json:"code"`
	Name           string     `gorm:"size:128" json:"name"`
	URL            string     `gorm:"size:512" json:"url"`
	Tier           string     `gorm:"size:16;index" json:"tier"`
	BaseTrustScore float64    `json:"baseTrustScore"`
	Language       string     `gorm:"size:8" json:"language"`
	Active         bool       `gorm:"index" json:"active"`
	LastFetchedAt  *time.Time `json:"lastFetchedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Source{}, &Article{}, &ArticleKey{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed", "error", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureSource 按 code 建立或更新数据源
func (s *Store) EnsureSource(ctx context.Context, src Source) (*Source, error) {
	existing := &Source{}
	err := s.DB.WithContext(ctx).Where("code = ?", src.Code).First(existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.DB.WithContext(ctx).Create(&src).Error; err != nil {
			return nil, fmt.Errorf("storage: create source %s: %w", src.Code, err)
		}
		return &src, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load source %s: %w", src.Code, err)
	}

	updates := map[string]any{
		"name":             src.Name,
		"url":              src.URL,
		"tier":             src.Tier,
		"base_trust_score": src.BaseTrustScore,
		"language":         src.Language,
		"active":           src.Active,
	}
	if err := s.DB.WithContext(ctx).Model(existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("storage: update source %s: %w", src.Code, err)
	}
	return existing, nil
}

// SyncSources 把配置中的数据源同步到 sources 表
func (s *Store) SyncSources(ctx context.Context, cfgs []config.SourceConfig) error {
	for _, c := range cfgs {
		if _, err := s.EnsureSource(ctx, sourceFromConfig(c)); err != nil {
			return err
		}
	}
	return nil
}

// ListActiveSources 返回全部启用的数据源
func (s *Store) ListActiveSources(ctx context.Context) ([]collector.Source, error) {
	var rows []Source
	if err := s.DB.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("storage: list sources: %w", err)
	}
	out := make([]collector.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCollector())
	}
	return out, nil
}

// MarkFetched 记录本轮成功拉取的数据源时间
func (s *Store) MarkFetched(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&Source{}).Where("id IN ?", ids).Update("last_fetched_at", at).Error
}

func sourceFromConfig(c config.SourceConfig) Source {
	lang := c.Language
	if lang == "" {
		lang = "en"
	}
	return Source{
		Code:           c.Code,
		Name:           c.Name,
		URL:            c.URL,
		Tier:           string(collector.ParseTier(c.Tier)),
		BaseTrustScore: c.Trust,
		Language:       lang,
		Active:         c.IsActive(),
	}
}

func (s Source) toCollector() collector.Source {
	return collector.Source{
		ID:             s.ID,
		Code:           s.Code,
		Name:           s.Name,
		URL:            s.URL,
		Tier:           collector.ParseTier(s.Tier),
		BaseTrustScore: s.BaseTrustScore,
		Language:       s.Language,
		Active:         s.Active,
		LastFetchedAt:  s.LastFetchedAt,
	}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
