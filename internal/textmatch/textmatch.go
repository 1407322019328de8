// Package textmatch 提供关键词表匹配用的文本折叠与分词
package textmatch

import (
	"strings"
	"unicode"
)

// Fold 转小写，非字母数字一律替换为空格并压缩，首尾各补一个空格，
// 便于用 " term " 做整词匹配
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Has folded 必须是 Fold 的结果，term 为小写、单空格分隔
func Has(folded, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(folded, " "+term+" ")
}

func HasAny(folded string, terms []string) bool {
	for _, t := range terms {
		if Has(folded, t) {
			return true
		}
	}
	return false
}

// Words 小写后按空白切分，去掉词首尾的标点
func Words(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
