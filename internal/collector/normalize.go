package collector

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Normalize 把 RSS item / Atom entry 统一成 RawArticle。
// 缺少标题或链接的条目直接丢弃；最多保留 maxItems 条。
func Normalize(feed *gofeed.Feed, src Source, now time.Time, maxItems int) []RawArticle {
	if feed == nil {
		return nil
	}
	if maxItems <= 0 {
		maxItems = feedDefaultMaxItems
	}

	out := make([]RawArticle, 0, min(len(feed.Items), maxItems))
	for _, it := range feed.Items {
		if len(out) >= maxItems {
			break
		}
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		link := itemLink(it)
		if title == "" || link == "" {
			continue
		}

		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			desc = strings.TrimSpace(it.Content)
		}

		out = append(out, RawArticle{
			Title:       title,
			Description: desc,
			URL:         link,
			GUID:        strings.TrimSpace(it.GUID),
			PublishedAt: itemTime(it, now),
			SourceID:    src.ID,
		})
	}
	return out
}

// itemLink 优先取 <link> 文本，其次取 Atom 的 href 列表
func itemLink(it *gofeed.Item) string {
	if l := strings.TrimSpace(it.Link); l != "" {
		return l
	}
	for _, l := range it.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// itemTime published → updated → now；未来时间一律截到 now
func itemTime(it *gofeed.Item, now time.Time) time.Time {
	var t time.Time
	switch {
	case it.PublishedParsed != nil:
		t = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		t = *it.UpdatedParsed
	default:
		return now
	}
	if t.IsZero() || t.After(now) {
		return now
	}
	return t
}
