package overlay

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

// Descriptor 一个可翻译文本元素的描述，每次提取都会重新生成
type Descriptor struct {
	NodeID       string     `json:"nodeId"`
	Element      *html.Node `json:"-"`
	OriginalText string     `json:"originalText"`
	Path         string     `json:"path"`
	PageURL      string     `json:"pageUrl"`
	TagName      string     `json:"tagName"`
	Rect         dom.Rect   `json:"rect"`
	Visible      bool       `json:"visible"`
	Lang         string     `json:"lang,omitempty"` // ISO 639-3
}

// ExtractorOptions 提取器选项
type ExtractorOptions struct {
	AllowTags            []string   // 可承载文本的标签
	DenyTags             []string   // 整个子树都跳过的标签
	OptOutClass          string     // 退出翻译的 class
	OptOutAttr           string     // 退出翻译的属性
	WidgetID             string     // 部件自身的根元素 id
	WidgetClass          string     // 部件自身的 class
	MarkerAttr           string     // 预览时记录原文的属性
	RespectTranslateAttr bool       // 是否尊重 translate="no"
	DetectLanguage       bool       // 是否检测原文语言
	Layout               dom.Layout // 布局盒来源
}

// DefaultExtractorOptions 默认提取器选项
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		AllowTags: []string{
			"p", "h1", "h2", "h3", "h4", "h5", "h6", "span", "div", "a",
			"button", "label", "td", "th", "li", "blockquote", "caption",
			"figcaption", "legend", "summary", "details",
		},
		DenyTags: []string{
			"script", "style", "meta", "title", "code", "pre",
			"noscript", "template", "svg",
		},
		OptOutClass:          "no-translate",
		OptOutAttr:           "data-no-translate",
		WidgetID:             "translation-widget",
		WidgetClass:          "translator-widget",
		MarkerAttr:           DefaultMarkerAttr,
		RespectTranslateAttr: true,
		Layout:               dom.DefaultLayout(),
	}
}

// Extractor 文本节点提取器
type Extractor struct {
	opts   ExtractorOptions
	allow  map[string]bool
	deny   map[string]bool
	logger *zap.Logger
}

// NewExtractor 创建提取器
func NewExtractor(opts ExtractorOptions, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Layout == nil {
		opts.Layout = dom.DefaultLayout()
	}
	if opts.MarkerAttr == "" {
		opts.MarkerAttr = DefaultMarkerAttr
	}
	return &Extractor{
		opts:   opts,
		allow:  toSet(opts.AllowTags),
		deny:   toSet(opts.DenyTags),
		logger: logger,
	}
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[strings.ToLower(it)] = true
	}
	return m
}

// Extract 提取整个文档
func (e *Extractor) Extract(doc *dom.Document) []Descriptor {
	return e.ExtractFrom(doc, nil)
}

// ExtractFrom 提取 root 子树，root 为 nil 时提取整个文档
func (e *Extractor) ExtractFrom(doc *dom.Document, root *html.Node) []Descriptor {
	var out []Descriptor
	doc.View(func(docRoot *html.Node) {
		if root == nil {
			root = docRoot
		} else if !dom.Contains(docRoot, root) {
			e.logger.Debug("extraction root is detached")
			return
		}
		out = e.extract(root, doc.URL())
	})
	return out
}

func (e *Extractor) extract(root *html.Node, pageURL string) []Descriptor {
	// 祖先被排除时整棵子树都不提取
	for p := root; p != nil; p = p.Parent {
		if dom.IsElement(p) && e.excluded(p) {
			return nil
		}
	}

	seen := make(map[string]struct{})
	var out []Descriptor

	visit := func(n *html.Node) {
		if !e.allow[dom.TagName(n)] {
			return
		}
		text := strings.TrimSpace(originalDirectText(n, e.opts.MarkerAttr))
		if !IsMeaningfulText(text) {
			return
		}
		key := norm.NFC.String(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, e.describe(n, text, pageURL))
	}

	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Children().Each(func(_ int, child *goquery.Selection) {
			n := child.Get(0)
			if e.excluded(n) {
				return
			}
			visit(n)
			walk(child)
		})
	}

	sel := goquery.NewDocumentFromNode(root).Selection
	if dom.IsElement(root) {
		visit(root)
	}
	walk(sel)

	e.logger.Debug("extracted translatable nodes",
		zap.String("page", pageURL),
		zap.Int("count", len(out)))
	return out
}

func (e *Extractor) describe(n *html.Node, text, pageURL string) Descriptor {
	rect := e.opts.Layout.Box(n)
	d := Descriptor{
		NodeID:       DeriveNodeID(n, text),
		Element:      n,
		OriginalText: text,
		Path:         DerivePath(n),
		PageURL:      pageURL,
		TagName:      dom.TagName(n),
		Rect:         rect,
		Visible:      dom.ComputeStyle(n).Visible() && !rect.Empty(),
	}
	if e.opts.DetectLanguage {
		d.Lang = detectLanguage(text)
	}
	return d
}

// 文本太短时不做语言检测
const minDetectLetters = 24

// detectLanguage 返回 ISO 639-3 代码，无法判断时返回空串
//
// 界面文本通常很短，whatlanggo 很少给出 IsReliable，字母足够多且有明确首选时也接受。
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return ""
	}
	if info.IsReliable() {
		return info.Lang.Iso6393()
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters >= minDetectLetters && info.Confidence > 0 {
		return info.Lang.Iso6393()
	}
	return ""
}

// excluded 检查元素本身是否带有排除标记
func (e *Extractor) excluded(n *html.Node) bool {
	if e.deny[dom.TagName(n)] {
		return true
	}
	if e.opts.OptOutClass != "" && dom.HasClass(n, e.opts.OptOutClass) {
		return true
	}
	if e.opts.OptOutAttr != "" {
		if _, ok := dom.Attr(n, e.opts.OptOutAttr); ok {
			return true
		}
	}
	if e.opts.WidgetID != "" {
		if id, _ := dom.Attr(n, "id"); id == e.opts.WidgetID {
			return true
		}
	}
	if e.opts.WidgetClass != "" && dom.HasClass(n, e.opts.WidgetClass) {
		return true
	}
	if e.opts.RespectTranslateAttr {
		if v, ok := dom.Attr(n, "translate"); ok && strings.EqualFold(strings.TrimSpace(v), "no") {
			return true
		}
	}
	return false
}

// Excluded 检查元素或其任一祖先是否被排除
func (e *Extractor) Excluded(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if dom.IsElement(p) && e.excluded(p) {
			return true
		}
	}
	return false
}
