package collector

import (
	"context"
	"time"
)

// Tier 数据源等级
type Tier string

const (
	TierOfficial Tier = "official"
	TierOne      Tier = "tier1"
	TierTwo      Tier = "tier2"
	TierThree    Tier = "tier3"
)

// ParseTier 未知等级按 tier3 处理
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierOfficial, TierOne, TierTwo, TierThree:
		return Tier(s)
	}
	return TierThree
}

// Source 一个 RSS/Atom 数据源
type Source struct {
	ID             uint
	Code           string
	Name           string
	URL            string
	Tier           Tier
	BaseTrustScore float64
	Language       string
	Active         bool
	LastFetchedAt  *time.Time
}

// RawArticle 单次采集内的原始条目，不会跨轮次存在
type RawArticle struct {
	Title       string
	Description string
	URL         string
	GUID        string
	PublishedAt time.Time
	SourceID    uint
}

// Fetcher 抽象每一个数据源的拉取
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]RawArticle, error)
}
