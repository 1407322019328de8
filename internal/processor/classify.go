package processor

import (
	"sort"

	"github.com/LJTian/KickoffHub/internal/textmatch"
)

// Tags 从文本中识别出的实体集合（已排序、去重）
type Tags struct {
	TeamIDs   []string
	LeagueIDs []string
	PlayerIDs []string
}

// Classify 按 categoryRules 的固定顺序取第一个命中的分类，否则 general
func Classify(text string) Category {
	folded := textmatch.Fold(text)
	for _, rule := range categoryRules {
		if textmatch.HasAny(folded, rule.terms) {
			return rule.category
		}
	}
	return CategoryGeneral
}

// ExtractTags 对三张别名表分别做 OR 累加，与分类结果无关
func ExtractTags(text string) Tags {
	folded := textmatch.Fold(text)
	return Tags{
		TeamIDs:   matchAliases(folded, teamAliases),
		LeagueIDs: matchAliases(folded, leagueAliases),
		PlayerIDs: matchAliases(folded, playerAliases),
	}
}

// IsBreaking 文本中含有突发新闻类措辞
func IsBreaking(text string) bool {
	return textmatch.HasAny(textmatch.Fold(text), breakingNewsTerms)
}

func matchAliases(folded string, table map[string][]string) []string {
	var ids []string
	for id, aliases := range table {
		if textmatch.HasAny(folded, aliases) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// tagSet 分类 + 全部实体 id
func tagSet(c Category, t Tags) []string {
	seen := map[string]struct{}{string(c): {}}
	out := []string{string(c)}
	for _, group := range [][]string{t.TeamIDs, t.LeagueIDs, t.PlayerIDs} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
