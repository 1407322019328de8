package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/scoring"
)

// 摘要长度上限，与存储层 varchar 保持一致
const summaryMaxRunes = 600

// Article 清洗、打分之后的规范化文章，是去重与入库的输入
type Article struct {
	ID          string
	Title       string
	Summary     string
	URL         string
	GUID        string
	SourceID    uint
	SourceCode  string
	SourceName  string
	SourceTier  collector.Tier
	SourceTrust float64
	Language    string
	TrustScore  float64
	Category    Category
	Tags        []string
	TeamIDs     []string
	LeagueIDs   []string
	PlayerIDs   []string
	PublishedAt time.Time
	IsBreaking  bool
	IsFeatured  bool

	// 以下字段由去重阶段填充
	ClusterID        string
	DuplicateCount   int
	DuplicateSources []string
	// 同簇全部成员（含自身）的 URL 与 guid
	MemberURLs  []string
	MemberGUIDs []string
}

// SourceLabel 形如 "BBC Sport [tier1]"
func (a Article) SourceLabel() string {
	return a.SourceName + " [" + string(a.SourceTier) + "]"
}

// DedupKeys 跨轮次判重用的键：自身及同簇成员的 url 与 guid。
// 任一键已入库即视为同一事件
func (a Article) DedupKeys() []string {
	keys := make([]string, 0, 2+len(a.MemberURLs)+len(a.MemberGUIDs))
	add := func(prefix, v string) {
		if v == "" || slices.Contains(keys, prefix+v) {
			return
		}
		keys = append(keys, prefix+v)
	}
	add("url:", a.URL)
	add("guid:", a.GUID)
	for _, u := range a.MemberURLs {
		add("url:", u)
	}
	for _, g := range a.MemberGUIDs {
		add("guid:", g)
	}
	return keys
}

// Processor 做清洗、分类、打标签与可信度打分
type Processor struct {
	Now func() time.Time
}

func NewProcessor() *Processor {
	return &Processor{Now: time.Now}
}

// Process 同一轮内按 URL 去重；标题清洗后为空的条目丢弃
func (p *Processor) Process(items []collector.RawArticle, sources map[uint]collector.Source) []Article {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	out := make([]Article, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		url := strings.TrimSpace(it.URL)
		if url == "" {
			continue
		}
		id := hashURL(url)
		if _, ok := seen[id]; ok {
			continue
		}

		title := CleanText(it.Title)
		if title == "" {
			continue
		}
		seen[id] = struct{}{}
		summary := truncateRunes(CleanText(it.Description), summaryMaxRunes)

		src := sources[it.SourceID]
		tier := src.Tier
		if tier == "" {
			tier = collector.TierThree
		}
		published := it.PublishedAt
		if published.IsZero() || published.After(now) {
			published = now
		}

		text := title + " " + summary
		category := Classify(text)
		tags := ExtractTags(text)

		out = append(out, Article{
			ID:          id,
			Title:       title,
			Summary:     summary,
			URL:         url,
			GUID:        it.GUID,
			SourceID:    it.SourceID,
			SourceCode:  src.Code,
			SourceName:  src.Name,
			SourceTier:  tier,
			SourceTrust: scoring.BaseTrust(tier, src.BaseTrustScore, src.URL),
			Language:    src.Language,
			TrustScore: scoring.TrustScore(scoring.TrustInput{
				Tier:        tier,
				BaseTrust:   src.BaseTrustScore,
				URL:         url,
				SourceURL:   src.URL,
				Text:        text,
				PublishedAt: published,
			}, now),
			Category:    category,
			Tags:        tagSet(category, tags),
			TeamIDs:     tags.TeamIDs,
			LeagueIDs:   tags.LeagueIDs,
			PlayerIDs:   tags.PlayerIDs,
			PublishedAt: published,
			IsBreaking:  IsBreaking(text),
		})
	}

	return out
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// WithCategory 用指定分类覆盖自动分类结果，tags 首位随之更新
func (a Article) WithCategory(c Category) Article {
	a.Category = c
	a.Tags = tagSet(c, Tags{TeamIDs: a.TeamIDs, LeagueIDs: a.LeagueIDs, PlayerIDs: a.PlayerIDs})
	return a
}
