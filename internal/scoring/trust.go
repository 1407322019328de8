// Package scoring 计算文章的可信度（入库时）与个性化相关度（读取时）
package scoring

import (
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/textmatch"
)

// TierTrust 各等级的基础可信度
var TierTrust = map[collector.Tier]float64{
	collector.TierOfficial: 100,
	collector.TierOne:      92,
	collector.TierTwo:      78,
	collector.TierThree:    55,
}

// DomainTrust 按域名覆盖基础可信度，子域名向上匹配
var DomainTrust = map[string]float64{
	"premierleague.com": 100,
	"uefa.com":          100,
	"fifa.com":          100,
	"bbc.co.uk":         95,
	"bbc.com":           95,
	"skysports.com":     92,
	"theguardian.com":   92,
	"espn.com":          82,
	"goal.com":          75,
	"football365.com":   60,
	"caughtoffside.com": 50,
	"thesun.co.uk":      50,
}

var (
	officialTerms = []string{
		"official", "officially", "confirmed", "confirms", "announces", "announced",
		"statement", "completes", "completed", "unveils", "unveiled",
	}
	breakingTerms = []string{"breaking", "exclusive", "just in"}
	speculativeTerms = []string{
		"rumour", "rumours", "rumor", "rumors", "could", "might", "reportedly",
		"linked", "considering", "eyeing", "monitoring", "set to", "in talks",
	}
)

const (
	officialBonus      = 8
	breakingBonus      = 4
	speculativePenalty = 12
	recencyHourBonus   = 10
	recencyDayBonus    = 5
)

type TrustInput struct {
	Tier      collector.Tier
	BaseTrust float64 // 数据源自身配置的可信度，0 表示按 tier
	// URL 文章链接，用于域名表覆盖；为空时回落到 SourceURL
	URL         string
	SourceURL   string
	Text        string
	PublishedAt time.Time
}

// BaseTrust 数据源的基础可信度：域名表 > 数据源配置 > 等级表
func BaseTrust(tier collector.Tier, configured float64, rawURL string) float64 {
	if v, ok := lookupDomainTrust(rawURL); ok {
		return v
	}
	if configured > 0 {
		return clamp(configured)
	}
	if v, ok := TierTrust[tier]; ok {
		return v
	}
	return TierTrust[collector.TierThree]
}

// TrustScore 基础可信度 + 措辞修正 + 时效加分，结果截断到 [0,100]
func TrustScore(in TrustInput, now time.Time) float64 {
	link := in.URL
	if _, ok := lookupDomainTrust(link); !ok {
		link = in.SourceURL
	}
	score := BaseTrust(in.Tier, in.BaseTrust, link)

	folded := textmatch.Fold(in.Text)
	if textmatch.HasAny(folded, officialTerms) {
		score += officialBonus
	}
	if textmatch.HasAny(folded, breakingTerms) {
		score += breakingBonus
	}
	if textmatch.HasAny(folded, speculativeTerms) {
		score -= speculativePenalty
	}

	age := now.Sub(in.PublishedAt)
	switch {
	case age < time.Hour:
		score += recencyHourBonus
	case age < 24*time.Hour:
		score += recencyDayBonus
	}
	return clamp(score)
}

func lookupDomainTrust(rawURL string) (float64, bool) {
	if rawURL == "" {
		return 0, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for host != "" {
		if v, ok := DomainTrust[host]; ok {
			return v, true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return 0, false
}

func clamp(v float64) float64 {
	return max(0, min(100, v))
}
