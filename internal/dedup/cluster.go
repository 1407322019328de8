package dedup

import (
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/LJTian/KickoffHub/internal/processor"
	"github.com/google/uuid"
)

// Cluster 一轮采集内的一个重复簇；Members[0] 是聚类时用来比较的首个成员
type Cluster struct {
	ID             string
	Representative processor.Article
	Members        []processor.Article
}

// Size 簇内文章数
func (c Cluster) Size() int {
	return len(c.Members)
}

// Clusterer 单趟聚类 + 代表文章挑选
type Clusterer struct {
	Now   func() time.Time
	NewID func() string
}

func NewClusterer() *Clusterer {
	return &Clusterer{Now: time.Now, NewID: uuid.NewString}
}

// Cluster 按到达顺序遍历，只与每个已有簇的首个成员比较，O(n·k)
func (c *Clusterer) Cluster(articles []processor.Article) []Cluster {
	if len(articles) == 0 {
		return nil
	}
	now := c.now()

	var clusters []Cluster
	for _, a := range articles {
		joined := false
		for i := range clusters {
			if IsSimilar(clusters[i].Members[0], a) {
				clusters[i].Members = append(clusters[i].Members, a)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, Cluster{ID: c.newID(), Members: []processor.Article{a}})
		}
	}

	for i := range clusters {
		finalize(&clusters[i], now)
	}
	return clusters
}

// Deduplicate 返回每个簇的代表文章，顺序与簇的创建顺序一致
func (c *Clusterer) Deduplicate(articles []processor.Article) []processor.Article {
	clusters := c.Cluster(articles)
	out := make([]processor.Article, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, cl.Representative)
	}
	return out
}

// finalize 选出代表文章并回填簇信息
func finalize(cl *Cluster, now time.Time) {
	best := 0
	bestScore := Quality(cl.Members[0], now)
	for i := 1; i < len(cl.Members); i++ {
		// 严格大于：分数相同时保留先出现的
		if q := Quality(cl.Members[i], now); q > bestScore {
			best, bestScore = i, q
		}
	}

	for i := range cl.Members {
		cl.Members[i].ClusterID = cl.ID
	}

	rep := cl.Members[best]
	others := make([]processor.Article, 0, len(cl.Members)-1)
	for i, m := range cl.Members {
		if i != best {
			others = append(others, m)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		return others[i].SourceTrust > others[j].SourceTrust
	})

	// 与代表文章同源的成员不计入 duplicateSources
	ownLabel := rep.SourceLabel()
	labels := make([]string, 0, len(others))
	for _, m := range others {
		if label := m.SourceLabel(); label != ownLabel {
			labels = append(labels, label)
		}
	}

	urls := make([]string, 0, len(cl.Members))
	guids := make([]string, 0, len(cl.Members))
	for _, m := range cl.Members {
		urls = append(urls, m.URL)
		if m.GUID != "" {
			guids = append(guids, m.GUID)
		}
	}

	rep.DuplicateCount = len(cl.Members) - 1
	rep.DuplicateSources = labels
	rep.MemberURLs = urls
	rep.MemberGUIDs = guids
	cl.Representative = rep
}

// Quality 代表文章打分：可信度（≤40）+ 摘要长度 + 新鲜度 + 标题质量
func Quality(a processor.Article, now time.Time) float64 {
	q := a.TrustScore * 0.4

	switch n := utf8.RuneCountInString(a.Summary); {
	case n >= 100 && n <= 500:
		q += 20
	case n >= 50:
		q += 10
	}

	hours := now.Sub(a.PublishedAt).Hours()
	q += max(0, 20-2*hours)

	if n := utf8.RuneCountInString(a.Title); n >= 30 && n <= 120 {
		q += 5
	}
	for _, r := range a.Title {
		if unicode.IsDigit(r) {
			q += 5
			break
		}
	}
	return q
}

func (c *Clusterer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Clusterer) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
