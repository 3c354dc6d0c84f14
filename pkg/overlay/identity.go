package overlay

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
	"golang.org/x/net/html"
)

// whitespaceRun 含 NBSP 等 Unicode 空白
var whitespaceRun = regexp.MustCompile(`[\s\x0B\p{Z}\x{FEFF}]+`)

// DeriveNodeID 计算元素的稳定标识
//
// 优先级：id 属性 > class 列表 + 文本片段 > 标签名 + 兄弟序号 + 文本片段。
// 相同 class 与相同文本的两个元素会得到相同标识，这是有意接受的不精确。
func DeriveNodeID(n *html.Node, text string) string {
	if !dom.IsElement(n) {
		return ""
	}

	if id, ok := dom.Attr(n, "id"); ok && id != "" {
		return "id-" + id
	}

	if classes := dom.ClassList(n); len(classes) > 0 {
		snippet := whitespaceRun.ReplaceAllString(firstRunes(text, 20), "-")
		return "class-" + strings.Join(classes, "-") + "-" + snippet
	}

	return dom.TagName(n) + "-" + strconv.Itoa(siblingIndex(n)) + "-" + sanitizeASCII(firstRunes(text, 30))
}

// DerivePath 计算元素的结构路径（XPath 子集）
func DerivePath(n *html.Node) string {
	if !dom.IsElement(n) {
		return ""
	}
	if id, ok := dom.Attr(n, "id"); ok && id != "" {
		return fmt.Sprintf(`//*[@id=%q]`, id)
	}

	var steps []string
	for p := n; dom.IsElement(p); p = p.Parent {
		tag := dom.TagName(p)
		pos, total := sameTagPosition(p)
		if total > 1 {
			steps = append(steps, fmt.Sprintf("%s[%d]", tag, pos))
		} else {
			steps = append(steps, tag)
		}
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return "/" + strings.Join(steps, "/")
}

// ResolvePath 按 DerivePath 生成的路径在 root 下重新定位元素，找不到返回 nil
func ResolvePath(root *html.Node, path string) *html.Node {
	if root == nil || path == "" {
		return nil
	}

	if strings.HasPrefix(path, `//*[@id=`) && strings.HasSuffix(path, `]`) {
		quoted := strings.TrimSuffix(strings.TrimPrefix(path, `//*[@id=`), `]`)
		id, err := strconv.Unquote(quoted)
		if err != nil {
			return nil
		}
		return dom.FindByID(root, id)
	}

	if !strings.HasPrefix(path, "/") {
		return nil
	}

	cur := root
	for _, step := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		tag, pos, ok := parseStep(step)
		if !ok {
			return nil
		}
		cur = childByTag(cur, tag, pos)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func parseStep(step string) (tag string, pos int, ok bool) {
	open := strings.IndexByte(step, '[')
	if open < 0 {
		return step, 1, step != ""
	}
	if !strings.HasSuffix(step, "]") {
		return "", 0, false
	}
	n, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return step[:open], n, open > 0
}

func childByTag(parent *html.Node, tag string, pos int) *html.Node {
	seen := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if dom.TagName(c) != tag {
			continue
		}
		seen++
		if seen == pos {
			return c
		}
	}
	return nil
}

// siblingIndex 元素在父元素的元素子节点中的下标（从 0 开始）
func siblingIndex(n *html.Node) int {
	if n.Parent == nil {
		return 0
	}
	idx := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			return idx
		}
		if c.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

// sameTagPosition 返回元素在同名兄弟中的位置（从 1 开始）和同名兄弟总数
func sameTagPosition(n *html.Node) (pos, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	tag := dom.TagName(n)
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if dom.TagName(c) != tag {
			continue
		}
		total++
		if c == n {
			pos = total
		}
	}
	return pos, total
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func sanitizeASCII(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
