package dom

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Style 计算后的样式，只覆盖可见性判断需要的属性
type Style struct {
	Display    string
	Visibility string
	Opacity    float64
	Width      float64 // px，未声明为 -1
	Height     float64 // px，未声明为 -1
}

// Visible 根据 display / visibility / opacity 判断是否可见
func (s Style) Visible() bool {
	if s.Display == "none" {
		return false
	}
	if s.Visibility == "hidden" || s.Visibility == "collapse" {
		return false
	}
	return s.Opacity > 0
}

// InlineStyle 解析 style 属性，解析失败返回空表
func InlineStyle(n *html.Node) map[string]string {
	raw, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	// 末尾缺少分号时 douceur 会丢掉最后一条声明的值
	raw = strings.TrimSpace(raw)
	if !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	decls, err := parser.ParseDeclarations(raw)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(decls))
	for _, d := range decls {
		out[strings.ToLower(d.Property)] = strings.ToLower(strings.TrimSpace(d.Value))
	}
	return out
}

// ComputeStyle 沿祖先链计算样式
//
// display:none 与 hidden 属性会隐藏整个子树；visibility 继承最近的声明；
// opacity 沿祖先链相乘。
func ComputeStyle(n *html.Node) Style {
	s := Style{Visibility: "visible", Opacity: 1, Width: -1, Height: -1}
	if n == nil {
		return s
	}

	own := InlineStyle(n)
	s.Display = own["display"]
	s.Width = parsePx(own["width"])
	s.Height = parsePx(own["height"])

	visibilitySet := false
	for p := n; p != nil; p = p.Parent {
		if !IsElement(p) {
			continue
		}
		decls := own
		if p != n {
			decls = InlineStyle(p)
		}
		if _, hidden := Attr(p, "hidden"); hidden || decls["display"] == "none" {
			s.Display = "none"
		}
		if v, ok := decls["visibility"]; ok && !visibilitySet {
			s.Visibility = v
			visibilitySet = true
		}
		if v, ok := decls["opacity"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.Opacity *= f
			}
		}
	}
	return s
}

func parsePx(v string) float64 {
	if v == "" {
		return -1
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return -1
	}
	return f
}
