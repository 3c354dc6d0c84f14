package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document 宿主页面的节点树
//
// 页面拥有所有节点，引擎只持有非拥有引用。所有修改都必须经过 Update，
// 修改完成后变更记录会派发给观察者（等价于浏览器的 MutationObserver）。
type Document struct {
	mu   sync.Mutex
	root *html.Node
	url  string

	obsMu     sync.Mutex
	observers map[int]func([]Record)
	nextObsID int
}

// NewDocument 用已解析的节点树创建文档
func NewDocument(root *html.Node, pageURL string) *Document {
	return &Document{
		root:      root,
		url:       pageURL,
		observers: make(map[int]func([]Record)),
	}
}

// Parse 解析 HTML 并创建文档
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return NewDocument(root, pageURL), nil
}

// ParseString 从字符串解析文档
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// URL 返回页面地址
func (d *Document) URL() string {
	return d.url
}

// View 在文档锁内只读访问节点树
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Update 在文档锁内修改节点树，释放锁后派发变更记录
func (d *Document) Update(fn func(tx *Tx)) {
	records := d.update(fn)
	d.dispatch(records)
}

func (d *Document) update(fn func(tx *Tx)) []Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &Tx{doc: d}
	fn(tx)
	return tx.records
}

// Observe 注册变更观察者，返回取消函数（可重复调用）
func (d *Document) Observe(fn func([]Record)) (cancel func()) {
	d.obsMu.Lock()
	id := d.nextObsID
	d.nextObsID++
	d.observers[id] = fn
	d.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.obsMu.Lock()
			delete(d.observers, id)
			d.obsMu.Unlock()
		})
	}
}

func (d *Document) dispatch(records []Record) {
	if len(records) == 0 {
		return
	}

	d.obsMu.Lock()
	fns := make([]func([]Record), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(records)
	}
}

// Render 将当前节点树序列化为 HTML
func (d *Document) Render(w io.Writer) error {
	var err error
	d.View(func(root *html.Node) {
		err = html.Render(w, root)
	})
	return err
}

// String 返回序列化后的 HTML
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
