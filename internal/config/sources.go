package config

// SourceConfig 数据源的静态描述，启动时同步到 sources 表
type SourceConfig struct {
	Code     string  `koanf:"code"`
	Name     string  `koanf:"name"`
	URL      string  `koanf:"url"`
	Tier     string  `koanf:"tier"`
	Trust    float64 `koanf:"trust"` // 0 表示按 tier 取默认值
	Language string  `koanf:"language"`
	Active   *bool   `koanf:"active"`
}

// IsActive 未显式配置 active 时默认启用
func (s SourceConfig) IsActive() bool {
	return s.Active == nil || *s.Active
}

// DefaultSources 内置的足球新闻源清单
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Code: "premier-league", Name: "Premier League", URL: "https://www.premierleague.com/news/rss", Tier: "official", Language: "en"},
		{Code: "uefa", Name: "UEFA", URL: "https://www.uefa.com/rssfeed/news/rss.xml", Tier: "official", Language: "en"},
		{Code: "bbc-football", Name: "BBC Sport", URL: "https://feeds.bbci.co.uk/sport/football/rss.xml", Tier: "tier1", Language: "en"},
		{Code: "sky-football", Name: "Sky Sports", URL: "https://www.skysports.com/rss/12040", Tier: "tier1", Language: "en"},
		{Code: "guardian-football", Name: "The Guardian", URL: "https://www.theguardian.com/football/rss", Tier: "tier1", Language: "en"},
		{Code: "espn-fc", Name: "ESPN FC", URL: "https://www.espn.com/espn/rss/soccer/news", Tier: "tier2", Language: "en"},
		{Code: "goal", Name: "Goal", URL: "https://www.goal.com/feeds/en/news", Tier: "tier2", Language: "en"},
		{Code: "football365", Name: "Football365", URL: "https://www.football365.com/feed", Tier: "tier3", Language: "en"},
		{Code: "caughtoffside", Name: "CaughtOffside", URL: "https://www.caughtoffside.com/feed/", Tier: "tier3", Language: "en"},
	}
}
