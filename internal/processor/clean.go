package processor

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy   = bluemonday.StrictPolicy()
	cdataReplacer = strings.NewReplacer("<![CDATA[", "", "]]>", "")
)

// CleanText 去掉 CDATA、HTML 标签与实体，并压缩空白
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = cdataReplacer.Replace(s)
	// StrictPolicy 会把文本里的 & < > 重新转义，这里再反转义一次得到纯文本
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
