package overlay

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// 不需要翻译的文本模式；纯数字和纯标点没有字母，已被字母检查排除
var (
	emailPattern = regexp2.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`, regexp2.None)
	urlPattern   = regexp2.MustCompile(`^(https?://|www\.)`, regexp2.IgnoreCase)
)

// stopWords 过短且过于常见的词
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "it": {}, "as": {}, "be": {},
	"ok": {}, "yes": {}, "no": {}, "hi": {}, "x": {},
}

// IsMeaningfulText 判断文本是否值得翻译
func IsMeaningfulText(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < 2 {
		return false
	}
	if !strings.ContainsFunc(t, unicode.IsLetter) {
		return false
	}
	if _, stop := stopWords[strings.ToLower(t)]; stop {
		return false
	}
	for _, re := range []*regexp2.Regexp{emailPattern, urlPattern} {
		if matched, err := re.MatchString(t); err == nil && matched {
			return false
		}
	}
	return true
}
