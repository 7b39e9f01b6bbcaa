// ABOUTME: Tests for the message ID dedupe cache.
// ABOUTME: Validates marking, size limits, eviction order, and concurrency safety.

package dedupe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_Check_NotSeen(t *testing.T) {
	cache := New(100)

	assert.False(t, cache.Check(42))
}

func TestCache_Check_Seen(t *testing.T) {
	cache := New(100)

	cache.Mark(42)

	assert.True(t, cache.Check(42))
}

func TestCache_CheckAndMark(t *testing.T) {
	cache := New(100)

	// First call marks, second sees the mark
	assert.False(t, cache.CheckAndMark(7))
	assert.True(t, cache.CheckAndMark(7))
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EvictsOldest(t *testing.T) {
	cache := New(3)

	cache.Mark(1)
	cache.Mark(2)
	cache.Mark(3)
	cache.Mark(4)

	assert.False(t, cache.Check(1), "oldest ID should be evicted")
	assert.True(t, cache.Check(2))
	assert.True(t, cache.Check(3))
	assert.True(t, cache.Check(4))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_RemarkRefreshesPosition(t *testing.T) {
	cache := New(2)

	cache.Mark(1)
	cache.Mark(2)
	cache.Mark(1) // 1 is now newest
	cache.Mark(3) // evicts 2

	assert.True(t, cache.Check(1))
	assert.False(t, cache.Check(2))
	assert.True(t, cache.Check(3))
}

func TestCache_DefaultSize(t *testing.T) {
	cache := New(0)

	for i := int64(0); i < DefaultSize+10; i++ {
		cache.Mark(i)
	}
	assert.Equal(t, DefaultSize, cache.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < 100; i++ {
				cache.CheckAndMark(base*100 + i)
				cache.Check(base*100 + i)
			}
		}(int64(g))
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 50)
}
