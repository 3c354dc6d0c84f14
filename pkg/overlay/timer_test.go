package overlay

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	t.Run("fires once", func(t *testing.T) {
		var calls atomic.Int32
		d := After(10*time.Millisecond, func() { calls.Add(1) })
		assert.True(t, d.Pending())

		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.False(t, d.Pending())
		assert.False(t, d.Cancel(), "cancel after firing has no effect")
	})

	t.Run("cancel prevents firing", func(t *testing.T) {
		var calls atomic.Int32
		d := After(20*time.Millisecond, func() { calls.Add(1) })
		assert.True(t, d.Cancel())
		assert.False(t, d.Cancel(), "second cancel is a no-op")
		assert.False(t, d.Pending())

		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("nil handle", func(t *testing.T) {
		var d *Delay
		assert.False(t, d.Cancel())
		assert.False(t, d.Pending())
	})
}
