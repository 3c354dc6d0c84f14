package overlay

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

// DefaultMarkerAttr 记录原文的标记属性
const DefaultMarkerAttr = "data-original-text"

// Patcher 在元素的第一个直接文本片段上应用/还原译文
//
// 标记属性保存第一个文本片段的原始内容（逐字节），只在不存在时写入，
// 因此多次 Apply 之后一次 Revert 总能回到最初的文本。
type Patcher struct {
	doc    *dom.Document
	marker string
	logger *zap.Logger
}

// NewPatcher 创建 Patcher，marker 为空时使用默认标记属性
func NewPatcher(doc *dom.Document, marker string, logger *zap.Logger) *Patcher {
	if marker == "" {
		marker = DefaultMarkerAttr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Patcher{doc: doc, marker: marker, logger: logger}
}

// MarkerAttr 返回标记属性名
func (p *Patcher) MarkerAttr() string {
	return p.marker
}

// Apply 用 newText 替换元素第一个文本片段
//
// originalText 非空时会与元素当前的原文比较，不一致说明描述已过期，放弃修改。
// 元素为 nil、已脱离文档或没有文本片段时返回 false。
func (p *Patcher) Apply(n *html.Node, newText, originalText string) bool {
	// 空白译文会让文本片段无法再被定位
	if n == nil || strings.TrimSpace(newText) == "" {
		return false
	}

	ok := false
	p.doc.Update(func(tx *dom.Tx) {
		if !tx.Contains(n) {
			p.logger.Debug("apply skipped: element detached")
			return
		}
		run := dom.FirstTextRun(n)
		if run == nil {
			p.logger.Debug("apply skipped: no text run", zap.String("tag", dom.TagName(n)))
			return
		}
		if want := strings.TrimSpace(originalText); want != "" && strings.TrimSpace(originalDirectText(n, p.marker)) != want {
			p.logger.Debug("apply skipped: element text changed since extraction",
				zap.String("expected", originalText))
			return
		}
		if _, marked := dom.Attr(n, p.marker); !marked {
			tx.SetAttr(n, p.marker, run.Data)
		}
		tx.SetData(run, keepEdges(run.Data, newText))
		ok = true
	})
	return ok
}

// Revert 还原 Apply 之前的文本并删除标记，没有标记时什么也不做
func (p *Patcher) Revert(n *html.Node) bool {
	if n == nil {
		return false
	}

	ok := false
	p.doc.Update(func(tx *dom.Tx) {
		if !tx.Contains(n) {
			return
		}
		original, marked := dom.Attr(n, p.marker)
		if !marked {
			return
		}
		run := dom.FirstTextRun(n)
		if run == nil {
			return
		}
		tx.SetData(run, original)
		tx.RemoveAttr(n, p.marker)
		ok = true
	})
	return ok
}

// IsPatched 元素是否带有标记
func (p *Patcher) IsPatched(n *html.Node) bool {
	_, ok := dom.Attr(n, p.marker)
	return ok
}

// keepEdges 保留原文本片段首尾的空白
func keepEdges(old, text string) string {
	lead := old[:len(old)-len(strings.TrimLeft(old, " \t\r\n\f"))]
	trail := old[len(strings.TrimRight(old, " \t\r\n\f")):]
	return lead + text + trail
}

// originalDirectText 返回元素未被修改时的直接文本
//
// 元素带有标记时，用标记中的原始内容替换第一个文本片段。
func originalDirectText(n *html.Node, marker string) string {
	original, marked := dom.Attr(n, marker)
	if !marked {
		return dom.DirectText(n)
	}
	run := dom.FirstTextRun(n)
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if c == run {
			sb.WriteString(original)
		} else {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
