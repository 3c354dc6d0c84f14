package overlay

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

// 预定义错误
var (
	ErrEngineClosed = errors.New("engine is closed")
	ErrNodeNotFound = errors.New("node not found")
	ErrDetached     = errors.New("element is no longer attached")
	ErrPatchFailed  = errors.New("no text run to patch")
)

// Hooks 引擎事件回调，全部可选
type Hooks struct {
	OnExtract func(count int, elapsed time.Duration)
	OnPatch   func(ok bool)
	OnRefresh func([]Descriptor)
}

// Options 引擎选项
type Options struct {
	Extractor   ExtractorOptions
	QuietPeriod time.Duration
	Watch       bool // 是否在 Init 时启动变更监听
	Hooks       Hooks
	Logger      *zap.Logger
}

// DefaultOptions 默认引擎选项
func DefaultOptions() Options {
	return Options{
		Extractor:   DefaultExtractorOptions(),
		QuietPeriod: DefaultQuietPeriod,
		Watch:       true,
	}
}

type engineState int

const (
	stateNew engineState = iota
	stateRunning
	stateClosed
)

// Engine 一个页面上的翻译叠加层实例
//
// 宿主程序负责创建并持有实例；引擎内部不假设全局唯一。
type Engine struct {
	doc       *dom.Document
	store     store.Store
	extractor *Extractor
	patcher   *Patcher
	watcher   *Watcher
	hooks     Hooks
	watch     bool
	logger    *zap.Logger

	mu          sync.Mutex
	state       engineState
	descriptors []Descriptor
	index       map[string]int
	previews    map[string]*html.Node
}

// New 创建引擎，调用 Init 后开始工作
func New(doc *dom.Document, st store.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	extractor := NewExtractor(opts.Extractor, logger.Named("extractor"))

	e := &Engine{
		doc:       doc,
		store:     st,
		extractor: extractor,
		patcher:   NewPatcher(doc, opts.Extractor.MarkerAttr, logger.Named("patcher")),
		hooks:     opts.Hooks,
		watch:     opts.Watch,
		logger:    logger,
		index:     make(map[string]int),
		previews:  make(map[string]*html.Node),
	}
	e.watcher = NewWatcher(e.onDocumentChange, WatcherOptions{
		QuietPeriod: opts.QuietPeriod,
		Ignore:      extractor.Excluded,
		Logger:      logger.Named("watcher"),
	})
	return e
}

// Init 执行第一次提取并启动变更监听，重复调用无副作用
func (e *Engine) Init() error {
	e.mu.Lock()
	switch e.state {
	case stateClosed:
		e.mu.Unlock()
		return ErrEngineClosed
	case stateRunning:
		e.mu.Unlock()
		return nil
	}
	e.state = stateRunning
	e.mu.Unlock()

	e.Refresh()
	if e.watch {
		if err := e.watcher.Start(e.doc, nil); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
	}
	e.logger.Info("overlay engine initialised",
		zap.String("page", e.doc.URL()),
		zap.Int("nodes", len(e.Descriptors())))
	return nil
}

// Destroy 停止监听并还原所有预览，可重复调用
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.watcher.Stop()
	reverted := e.RevertAll()

	e.mu.Lock()
	e.state = stateClosed
	e.descriptors = nil
	e.index = make(map[string]int)
	e.mu.Unlock()

	e.logger.Info("overlay engine destroyed", zap.Int("reverted", reverted))
}

// Document 返回引擎操作的文档
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Patcher 返回引擎使用的 Patcher
func (e *Engine) Patcher() *Patcher {
	return e.patcher
}

func (e *Engine) onDocumentChange() {
	descriptors := e.Refresh()
	if e.hooks.OnRefresh != nil {
		e.hooks.OnRefresh(descriptors)
	}
}

// Refresh 重新提取描述，同一元素与文本的标识保持不变
func (e *Engine) Refresh() []Descriptor {
	start := time.Now()
	descriptors := e.extractor.Extract(e.doc)
	elapsed := time.Since(start)

	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return nil
	}
	e.descriptors = descriptors
	e.index = make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		if _, dup := e.index[d.NodeID]; !dup {
			e.index[d.NodeID] = i
		}
	}
	out := append([]Descriptor(nil), descriptors...)
	e.mu.Unlock()

	if e.hooks.OnExtract != nil {
		e.hooks.OnExtract(len(descriptors), elapsed)
	}
	e.logger.Debug("descriptors refreshed",
		zap.Int("count", len(descriptors)),
		zap.Duration("elapsed", elapsed))
	return out
}

// Descriptors 返回当前描述的副本
func (e *Engine) Descriptors() []Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Descriptor(nil), e.descriptors...)
}

// Lookup 按标识查找描述，元素已脱离时按结构路径重新定位
func (e *Engine) Lookup(nodeID string) (Descriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookupLocked(nodeID)
}

func (e *Engine) lookupLocked(nodeID string) (Descriptor, error) {
	if e.state == stateClosed {
		return Descriptor{}, ErrEngineClosed
	}
	i, ok := e.index[nodeID]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	d := e.descriptors[i]

	var relocated *html.Node
	attached := false
	e.doc.View(func(root *html.Node) {
		if dom.Contains(root, d.Element) {
			attached = true
			return
		}
		n := ResolvePath(root, d.Path)
		if n == nil {
			return
		}
		text := strings.TrimSpace(originalDirectText(n, e.patcher.MarkerAttr()))
		if DeriveNodeID(n, text) == nodeID {
			relocated = n
		}
	})

	switch {
	case attached:
		return d, nil
	case relocated != nil:
		d.Element = relocated
		e.descriptors[i] = d
		e.logger.Debug("relocated detached element", zap.String("nodeId", nodeID), zap.String("path", d.Path))
		return d, nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %s", ErrDetached, nodeID)
	}
}

// Preview 在页面上预览译文
func (e *Engine) Preview(nodeID, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.lookupLocked(nodeID)
	if err != nil {
		return err
	}
	ok := e.patcher.Apply(d.Element, text, d.OriginalText)
	if e.hooks.OnPatch != nil {
		e.hooks.OnPatch(ok)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatchFailed, nodeID)
	}
	e.previews[nodeID] = d.Element
	return nil
}

// Revert 还原预览，没有预览时什么也不做
func (e *Engine) Revert(nodeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.lookupLocked(nodeID)
	if err != nil {
		return err
	}
	e.patcher.Revert(d.Element)
	delete(e.previews, nodeID)
	return nil
}

// RevertAll 还原所有预览，返回实际还原的数量
func (e *Engine) RevertAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for id, el := range e.previews {
		if e.patcher.Revert(el) {
			n++
		}
		delete(e.previews, id)
	}
	return n
}

// Save 保存译文并预览
//
// 先写存储再修改页面：存储失败时页面保持不变。预览失败只记录日志，
// 返回的记录仍然有效。
func (e *Engine) Save(lang, nodeID, text string, status store.Status) (*store.Record, error) {
	d, err := e.Lookup(nodeID)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.Save(lang, store.Intent{
		NodeID:         d.NodeID,
		OriginalText:   d.OriginalText,
		TranslatedText: text,
		PageURL:        d.PageURL,
		Status:         status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save translation: %w", err)
	}

	if err := e.Preview(nodeID, text); err != nil {
		e.logger.Warn("translation saved but preview failed",
			zap.String("nodeId", nodeID), zap.Error(err))
	}
	return rec, nil
}

// ApplyLanguage 还原现有预览后应用某个语言的全部译文，返回应用数量
func (e *Engine) ApplyLanguage(lang string) (int, error) {
	records, err := e.store.List(lang)
	if err != nil {
		return 0, fmt.Errorf("failed to list translations: %w", err)
	}
	byID := make(map[string]*store.Record, len(records))
	for _, r := range records {
		byID[r.NodeID] = r
	}

	e.RevertAll()

	applied := 0
	for _, d := range e.Descriptors() {
		rec, ok := byID[d.NodeID]
		if !ok || strings.TrimSpace(rec.TranslatedText) == "" {
			continue
		}
		if err := e.Preview(d.NodeID, rec.TranslatedText); err != nil {
			e.logger.Debug("skip translation", zap.String("nodeId", d.NodeID), zap.Error(err))
			continue
		}
		applied++
	}

	e.logger.Info("applied translations",
		zap.String("lang", lang),
		zap.Int("applied", applied),
		zap.Int("records", len(records)))
	return applied, nil
}

// Pending 返回某个语言中还没有译文记录的描述
func (e *Engine) Pending(lang string) ([]Descriptor, error) {
	var out []Descriptor
	for _, d := range e.Descriptors() {
		rec, err := e.store.Find(lang, d.NodeID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// ImportGlossary 按原文匹配当前页面的节点并写入译文，返回写入数量
func (e *Engine) ImportGlossary(lang string, entries map[string]string, status store.Status) (int, error) {
	normalized := make(map[string]string, len(entries))
	for k, v := range entries {
		normalized[norm.NFC.String(strings.TrimSpace(k))] = v
	}

	saved := 0
	for _, d := range e.Descriptors() {
		text, ok := normalized[norm.NFC.String(d.OriginalText)]
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := e.store.Save(lang, store.Intent{
			NodeID:         d.NodeID,
			OriginalText:   d.OriginalText,
			TranslatedText: text,
			PageURL:        d.PageURL,
			Status:         status,
		}); err != nil {
			return saved, fmt.Errorf("failed to save glossary entry for %s: %w", d.NodeID, err)
		}
		saved++
	}
	return saved, nil
}
