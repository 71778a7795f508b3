package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_TryLock(t *testing.T) {
	k := NewKeyedMutex()

	assert.True(t, k.TryLock("a"))
	assert.False(t, k.TryLock("a"), "second TryLock on a held key must fail")
	assert.True(t, k.TryLock("b"), "other keys are independent")

	k.Unlock("a")
	assert.True(t, k.TryLock("a"))

	k.Unlock("a")
	k.Unlock("b")
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_Serializes(t *testing.T) {
	k := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Lock("npc")
			defer k.Unlock("npc")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_UnlockUnheldPanics(t *testing.T) {
	k := NewKeyedMutex()
	assert.Panics(t, func() { k.Unlock("missing") })
}
