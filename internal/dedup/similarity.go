// Package dedup 把同一轮采集中描述同一事件的文章聚成簇，并为每簇挑选代表文章。
//
// 聚类是单趟、依赖到达顺序的近似算法：每篇文章只与已有各簇的第一个成员比较，
// 因此 IsSimilar 不具备传递性时，结果会随输入顺序变化。
package dedup

import (
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/processor"
	"github.com/LJTian/KickoffHub/internal/textmatch"
)

const (
	// TimeWindow 发布时间相差超过该值的文章直接判定为不同事件
	TimeWindow = 4 * time.Hour

	TitleJaccardThreshold   = 0.85
	KeywordOverlapThreshold = 0.7
	KeywordJaccardFloor     = 0.5

	minKeywordLen = 3
)

// tokenAliases 常见简称折叠为全称，两边标题写法不同也能对上
var tokenAliases = map[string]string{
	"man":   "manchester",
	"utd":   "united",
	"spurs": "tottenham",
	"barca": "barcelona",
	"juve":  "juventus",
	"epl":   "premier",
}

var stemSuffixes = []string{"ing", "ed", "es", "s", "e"}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {}, "for": {},
	"and": {}, "with": {}, "at": {}, "by": {}, "from": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "has": {}, "have": {}, "had": {}, "after": {},
	"over": {}, "his": {}, "her": {}, "their": {}, "its": {}, "new": {}, "says": {},
	"that": {}, "this": {}, "will": {}, "into": {}, "about": {}, "than": {}, "but": {},
	"not": {}, "who": {}, "what": {}, "why": {}, "how": {},
}

// IsSimilar 严格按顺序判断：时间窗口 → 标题 Jaccard → 关键词重合度
func IsSimilar(a, b processor.Article) bool {
	if absDuration(a.PublishedAt.Sub(b.PublishedAt)) > TimeWindow {
		return false
	}

	j := titleJaccard(a.Title, b.Title)
	if j >= TitleJaccardThreshold {
		return true
	}
	if j <= KeywordJaccardFloor {
		return false
	}
	return articleOverlap(a, b) > KeywordOverlapThreshold
}

// titleJaccard 归一化词集合的交并比
func titleJaccard(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

// articleOverlap |共同关键词| / min(|A|,|B|)，关键词取自标题 + 摘要
func articleOverlap(a, b processor.Article) float64 {
	return keywordOverlap(keywords(a), keywords(b))
}

func tokenSet(s string) map[string]struct{} {
	words := textmatch.Words(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[normalizeToken(w)] = struct{}{}
	}
	return set
}

// keywords 摘要为空时只用标题
func keywords(a processor.Article) map[string]struct{} {
	text := a.Title
	if a.Summary != "" {
		text += " " + a.Summary
	}
	words := textmatch.Words(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		w = normalizeToken(w)
		if len([]rune(w)) < minKeywordLen {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func normalizeToken(w string) string {
	if full, ok := tokenAliases[w]; ok {
		w = full
	}
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= minKeywordLen {
			return w[:len(w)-len(suf)]
		}
	}
	return w
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func keywordOverlap(a, b map[string]struct{}) float64 {
	smaller := min(len(a), len(b))
	if smaller == 0 {
		return 0
	}
	return float64(intersection(a, b)) / float64(smaller)
}

func intersection(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
