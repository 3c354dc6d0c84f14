package dom

import (
	"golang.org/x/net/html"
)

// RecordType 变更类型
type RecordType int

const (
	ChildList     RecordType = iota // 子节点插入/删除
	CharacterData                   // 文本内容变化
	Attributes                      // 属性变化
)

func (t RecordType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case CharacterData:
		return "characterData"
	case Attributes:
		return "attributes"
	default:
		return "unknown"
	}
}

// Record 单条变更记录
type Record struct {
	Type          RecordType
	Target        *html.Node
	Added         []*html.Node
	Removed       []*html.Node
	AttributeName string
	OldValue      string
}

// Tx 一次 Update 中的修改句柄，只能在 Update 回调内使用
type Tx struct {
	doc     *Document
	records []Record
}

// Root 返回文档根节点
func (tx *Tx) Root() *html.Node {
	return tx.doc.root
}

// Contains 检查节点是否仍挂在文档上
func (tx *Tx) Contains(n *html.Node) bool {
	return Contains(tx.doc.root, n)
}

// SetData 修改文本节点内容
func (tx *Tx) SetData(n *html.Node, data string) {
	if n == nil || n.Type != html.TextNode || n.Data == data {
		return
	}
	old := n.Data
	n.Data = data
	tx.records = append(tx.records, Record{Type: CharacterData, Target: n, OldValue: old})
}

// SetAttr 设置属性
func (tx *Tx) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old := n.Attr[i].Val
			if old == val {
				return
			}
			n.Attr[i].Val = val
			tx.records = append(tx.records, Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	tx.records = append(tx.records, Record{Type: Attributes, Target: n, AttributeName: key})
}

// RemoveAttr 删除属性，返回属性是否存在
func (tx *Tx) RemoveAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old := n.Attr[i].Val
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			tx.records = append(tx.records, Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
			return true
		}
	}
	return false
}

// AppendChild 追加子节点，child 必须是游离节点
func (tx *Tx) AppendChild(parent, child *html.Node) {
	if parent == nil || child == nil || child.Parent != nil {
		return
	}
	parent.AppendChild(child)
	tx.records = append(tx.records, Record{Type: ChildList, Target: parent, Added: []*html.Node{child}})
}

// InsertBefore 在 ref 之前插入子节点，ref 为 nil 时等价于 AppendChild
func (tx *Tx) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil || child.Parent != nil {
		return
	}
	if ref != nil && ref.Parent != parent {
		return
	}
	parent.InsertBefore(child, ref)
	tx.records = append(tx.records, Record{Type: ChildList, Target: parent, Added: []*html.Node{child}})
}

// RemoveChild 删除子节点
func (tx *Tx) RemoveChild(parent, child *html.Node) {
	if parent == nil || child == nil || child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
	tx.records = append(tx.records, Record{Type: ChildList, Target: parent, Removed: []*html.Node{child}})
}

// ReplaceRoot 用新解析的节点树替换整个文档（例如页面文件被重新加载）
func (tx *Tx) ReplaceRoot(root *html.Node) {
	if root == nil || root == tx.doc.root {
		return
	}
	old := tx.doc.root
	tx.doc.root = root
	tx.records = append(tx.records, Record{
		Type:    ChildList,
		Target:  root,
		Added:   children(root),
		Removed: children(old),
	})
}

func children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}
