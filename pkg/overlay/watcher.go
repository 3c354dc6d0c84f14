package overlay

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/dom"
)

// DefaultQuietPeriod 默认防抖窗口
const DefaultQuietPeriod = 300 * time.Millisecond

// ErrWatcherRunning 重复启动
var ErrWatcherRunning = errors.New("watcher already running")

// WatcherOptions 变更监听选项
type WatcherOptions struct {
	QuietPeriod time.Duration
	// Ignore 返回 true 的目标节点不触发回调（例如部件自身的子树）
	Ignore func(n *html.Node) bool
	Logger *zap.Logger
}

// Watcher 监听文档变更，防抖后触发 onChange
//
// 只关心"是否发生了变化"，不跟踪具体差异。
type Watcher struct {
	onChange func()
	opts     WatcherOptions

	mu      sync.Mutex
	doc     *dom.Document
	target  *html.Node
	cancel  func()
	pending *Delay
	gen     uint64
	running bool
}

// NewWatcher 创建监听器
func NewWatcher(onChange func(), opts WatcherOptions) *Watcher {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{onChange: onChange, opts: opts}
}

// Start 开始监听 target 子树，target 为 nil 时监听整个文档
func (w *Watcher) Start(doc *dom.Document, target *html.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrWatcherRunning
	}
	w.doc = doc
	w.target = target
	w.running = true
	w.cancel = doc.Observe(w.handle)
	w.opts.Logger.Debug("watcher started", zap.Duration("quiet", w.opts.QuietPeriod))
	return nil
}

// Stop 停止监听并取消尚未触发的回调，可重复调用
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.pending.Cancel()
	w.pending = nil
	w.opts.Logger.Debug("watcher stopped")
}

// Running 是否正在监听
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) handle(records []dom.Record) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	doc, target := w.doc, w.target
	w.mu.Unlock()

	// 派发发生在文档锁释放之后，检查祖先链需要重新加锁
	qualified := false
	doc.View(func(*html.Node) { qualified = w.qualifies(target, records) })
	if !qualified {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running || w.doc != doc {
		return
	}

	// 窗口内的新变更重新计时
	w.pending.Cancel()
	gen := w.gen
	w.pending = After(w.opts.QuietPeriod, func() { w.fire(gen) })
}

func (w *Watcher) fire(gen uint64) {
	w.mu.Lock()
	if !w.running || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.mu.Unlock()

	w.onChange()
}

// qualifies 调用方持有文档锁
func (w *Watcher) qualifies(target *html.Node, records []dom.Record) bool {
	for _, r := range records {
		if r.Type != dom.ChildList && r.Type != dom.CharacterData {
			continue
		}
		if target != nil && !dom.Contains(target, r.Target) {
			continue
		}
		if w.opts.Ignore != nil && w.opts.Ignore(r.Target) {
			continue
		}
		return true
	}
	return false
}
