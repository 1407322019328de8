package scoring

import "time"

// Preferences 读者的个性化偏好
type Preferences struct {
	ViewerID       string
	TeamIDs        []string
	PlayerIDs      []string
	LeagueIDs      []string
	Categories     []string
	BlockedSources []string
	Language       string
}

// RelevanceInput 计算相关度所需的文章字段
type RelevanceInput struct {
	TrustScore  float64
	Category    string
	TeamIDs     []string
	PlayerIDs   []string
	LeagueIDs   []string
	IsFeatured  bool
	IsBreaking  bool
	PublishedAt time.Time
	ViewCount   int64
}

const (
	trustWeight        = 0.3
	categoryMatchBonus = 20
	teamMatchBonus     = 15
	playerMatchBonus   = 12
	leagueMatchBonus   = 8
	featuredBonus      = 50
	breakingNewsBonus  = 30
)

type step struct {
	limit time.Duration
	bonus float64
}

var recencySteps = []step{
	{time.Hour, 25},
	{6 * time.Hour, 15},
	{24 * time.Hour, 8},
	{72 * time.Hour, 3},
}

var popularitySteps = []struct {
	views int64
	bonus float64
}{
	{1000, 10},
	{500, 6},
	{100, 3},
}

// Relevance 每次请求实时计算，不落库。
// 命中的球队/球员/联赛逐个累加，不设上限。
func Relevance(in RelevanceInput, prefs Preferences, now time.Time) float64 {
	score := in.TrustScore * trustWeight

	for _, c := range prefs.Categories {
		if c == in.Category {
			score += categoryMatchBonus
			break
		}
	}

	score += float64(overlap(in.TeamIDs, prefs.TeamIDs)) * teamMatchBonus
	score += float64(overlap(in.PlayerIDs, prefs.PlayerIDs)) * playerMatchBonus
	score += float64(overlap(in.LeagueIDs, prefs.LeagueIDs)) * leagueMatchBonus

	if in.IsFeatured {
		score += featuredBonus
	}
	if in.IsBreaking {
		score += breakingNewsBonus
	}

	age := now.Sub(in.PublishedAt)
	for _, s := range recencySteps {
		if age < s.limit {
			score += s.bonus
			break
		}
	}

	for _, p := range popularitySteps {
		if in.ViewCount >= p.views {
			score += p.bonus
			break
		}
	}
	return score
}

func overlap(have, want []string) int {
	if len(have) == 0 || len(want) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{}, len(want))
	for _, w := range want {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}
