package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Contains 检查 n 是否位于 root 之下（包括 root 本身）
func Contains(root, n *html.Node) bool {
	if root == nil || n == nil {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// IsElement 检查节点是否为元素节点
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName 返回小写标签名，非元素返回空串
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr 读取属性
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass 检查 class 列表是否包含 name
func HasClass(n *html.Node, name string) bool {
	for _, c := range ClassList(n) {
		if c == name {
			return true
		}
	}
	return false
}

// ClassList 返回 class 列表
func ClassList(n *html.Node) []string {
	v, ok := Attr(n, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// DirectText 拼接元素的直接文本子节点，不包含后代元素的文本
func DirectText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// FirstTextRun 返回第一个非空白的直接文本子节点
func FirstTextRun(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return c
		}
	}
	return nil
}

// TextContent 返回元素及其后代的全部文本
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			} else {
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// FindByID 在 root 下查找 id 属性等于 id 的第一个元素
func FindByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	if IsElement(root) {
		if v, ok := Attr(root, "id"); ok && v == id {
			return root
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
