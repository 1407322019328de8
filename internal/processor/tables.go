package processor

// Category 文章分类
type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryTransfer Category = "transfer"
	CategoryInjury   Category = "injury"
	CategoryMatch    Category = "match"
	CategoryAnalysis Category = "analysis"
)

// ParseCategory 非法值返回 false
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryGeneral, CategoryTransfer, CategoryInjury, CategoryMatch, CategoryAnalysis:
		return c, true
	}
	return "", false
}

type categoryRule struct {
	category Category
	terms    []string
}

// categoryRules 按顺序匹配，先命中者生效：transfer → injury → match → analysis
var categoryRules = []categoryRule{
	{CategoryTransfer, []string{
		"transfer", "transfers", "signs", "signing", "signed", "joins", "joined",
		"loan", "fee", "bid", "deal", "move to", "contract", "release clause",
		"medical", "here we go", "swap", "free agent",
	}},
	{CategoryInjury, []string{
		"injury", "injuries", "injured", "hamstring", "knee", "ankle", "groin",
		"ruled out", "sidelined", "fitness", "surgery", "strain", "concussion",
		"setback", "out for",
	}},
	{CategoryMatch, []string{
		"vs", "v", "match", "preview", "report", "score", "scores", "scored",
		"goal", "goals", "win", "wins", "draw", "defeat", "beat", "beats",
		"lineup", "line up", "kick off", "kickoff", "fixture", "half time",
		"full time", "result", "highlights",
	}},
	{CategoryAnalysis, []string{
		"analysis", "tactical", "tactics", "explained", "opinion", "column",
		"stats", "xg", "breakdown", "ratings", "verdict",
	}},
}

// breakingNewsTerms 命中则标记 isBreaking
var breakingNewsTerms = []string{"breaking", "breaking news", "just in"}

// 别名均为 textmatch.Fold 之后的形式
var teamAliases = map[string][]string{
	"manchester-united": {"manchester united", "man united", "man utd", "man u", "mufc", "red devils"},
	"manchester-city":   {"manchester city", "man city", "mcfc"},
	"liverpool":         {"liverpool", "lfc"},
	"arsenal":           {"arsenal", "gunners"},
	"chelsea":           {"chelsea"},
	"tottenham":         {"tottenham", "spurs"},
	"newcastle":         {"newcastle", "magpies"},
	"aston-villa":       {"aston villa"},
	"real-madrid":       {"real madrid", "los blancos"},
	"barcelona":         {"barcelona", "barca", "barça"},
	"atletico-madrid":   {"atletico madrid", "atletico"},
	"bayern-munich":     {"bayern munich", "bayern"},
	"borussia-dortmund": {"borussia dortmund", "dortmund", "bvb"},
	"psg":               {"paris saint germain", "psg"},
	"juventus":          {"juventus", "juve"},
	"inter-milan":       {"inter milan", "internazionale"},
	"ac-milan":          {"ac milan"},
}

var leagueAliases = map[string][]string{
	"premier-league":   {"premier league", "epl"},
	"la-liga":          {"la liga", "laliga"},
	"serie-a":          {"serie a"},
	"bundesliga":       {"bundesliga"},
	"ligue-1":          {"ligue 1"},
	"champions-league": {"champions league", "ucl"},
	"europa-league":    {"europa league"},
	"fa-cup":           {"fa cup"},
}

var playerAliases = map[string][]string{
	"erling-haaland":  {"erling haaland", "haaland"},
	"mohamed-salah":   {"mohamed salah", "salah"},
	"kylian-mbappe":   {"kylian mbappe", "mbappe", "mbappé"},
	"bukayo-saka":     {"bukayo saka", "saka"},
	"jude-bellingham": {"jude bellingham", "bellingham"},
	"harry-kane":      {"harry kane"},
	"bruno-fernandes": {"bruno fernandes"},
	"lamine-yamal":    {"lamine yamal", "yamal"},
	"vinicius-junior": {"vinicius junior", "vinicius"},
	"cole-palmer":     {"cole palmer"},
}
