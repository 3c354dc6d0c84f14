package dom

import (
	"math"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Rect 元素的布局盒
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty 宽或高为零
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Layout 提供元素的布局盒
type Layout interface {
	Box(n *html.Node) Rect
}

// EstimatedLayout 没有渲染引擎时的估算布局
//
// 只估算尺寸：宽度取 style 中的像素宽度或视口宽度，高度按文本行数估算。
// 位置始终为 0。
type EstimatedLayout struct {
	ViewportWidth float64
	LineHeight    float64
	CharWidth     float64
}

// DefaultLayout 默认估算参数
func DefaultLayout() EstimatedLayout {
	return EstimatedLayout{ViewportWidth: 1280, LineHeight: 20, CharWidth: 8}
}

// Box 实现 Layout
func (l EstimatedLayout) Box(n *html.Node) Rect {
	if !IsElement(n) {
		return Rect{}
	}
	style := ComputeStyle(n)
	if style.Display == "none" {
		return Rect{}
	}

	width := style.Width
	if width < 0 {
		width = l.ViewportWidth
	}
	height := style.Height
	if height < 0 {
		chars := utf8.RuneCountInString(TextContent(n))
		if chars == 0 || width <= 0 {
			height = 0
		} else {
			perLine := math.Max(1, math.Floor(width/l.CharWidth))
			height = math.Ceil(float64(chars)/perLine) * l.LineHeight
		}
	}
	return Rect{Width: width, Height: height}
}

// RectLayout 使用渲染器测得的布局盒，按结构路径索引
type RectLayout struct {
	Rects    map[string]Rect
	PathOf   func(*html.Node) string
	Fallback Layout
}

// Box 实现 Layout
func (l RectLayout) Box(n *html.Node) Rect {
	if l.PathOf != nil {
		if r, ok := l.Rects[l.PathOf(n)]; ok {
			return r
		}
	}
	if l.Fallback != nil {
		return l.Fallback.Box(n)
	}
	return Rect{}
}
