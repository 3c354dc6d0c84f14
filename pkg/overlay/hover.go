package overlay

import (
	"sync"
	"time"
)

// HoverTracker 管理悬停显示/隐藏的延迟
//
// Enter 会取消尚未执行的显示与隐藏；Leave 会取消尚未执行的显示。
// 这样用户移开后不会再冒出按钮。
type HoverTracker struct {
	showDelay time.Duration
	hideDelay time.Duration
	onShow    func(Descriptor)
	onHide    func()

	mu   sync.Mutex
	show *Delay
	hide *Delay
}

// NewHoverTracker 创建悬停跟踪器
func NewHoverTracker(showDelay, hideDelay time.Duration, onShow func(Descriptor), onHide func()) *HoverTracker {
	return &HoverTracker{
		showDelay: showDelay,
		hideDelay: hideDelay,
		onShow:    onShow,
		onHide:    onHide,
	}
}

// Enter 指针进入元素
func (h *HoverTracker) Enter(d Descriptor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.show.Cancel()
	h.hide.Cancel()
	h.hide = nil
	h.show = After(h.showDelay, func() { h.onShow(d) })
}

// Leave 指针离开元素
func (h *HoverTracker) Leave() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.show.Cancel()
	h.show = nil
	h.hide.Cancel()
	h.hide = After(h.hideDelay, h.onHide)
}

// Close 取消所有待执行的回调
func (h *HoverTracker) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.show.Cancel()
	h.hide.Cancel()
	h.show, h.hide = nil, nil
}
