package overlay

import (
	"sync"
	"time"
)

// Delay 可取消的延迟回调句柄
//
// Cancel 返回后回调不会再开始执行；重复 Cancel 是安全的。
type Delay struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
	fired     bool
}

// After 在 d 之后执行 fn
func After(d time.Duration, fn func()) *Delay {
	dl := &Delay{}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.timer = time.AfterFunc(d, func() {
		dl.mu.Lock()
		if dl.cancelled {
			dl.mu.Unlock()
			return
		}
		dl.fired = true
		dl.mu.Unlock()
		fn()
	})
	return dl
}

// Cancel 取消尚未执行的回调，返回是否真正阻止了一次执行
func (d *Delay) Cancel() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled || d.fired {
		return false
	}
	d.cancelled = true
	d.timer.Stop()
	return true
}

// Pending 回调是否仍在等待
func (d *Delay) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.cancelled && !d.fired
}
