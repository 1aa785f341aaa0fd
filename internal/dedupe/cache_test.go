// ABOUTME: Tests for the TTL and size-bounded message dedupe cache.
// ABOUTME: Covers atomicity, expiry refresh, and oldest-first eviction.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("a|1"), "first sighting is not a duplicate")
	assert.True(t, c.CheckAndMark("a|1"), "second sighting is a duplicate")
	assert.False(t, c.CheckAndMark("a|2"), "different key is independent")
	assert.False(t, c.CheckAndMark("b|1"), "same message ID under another session is independent")
	assert.Equal(t, 3, c.Len())
}

func TestExpiredKeyRefreshes(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("a|1"))
	time.Sleep(20 * time.Millisecond)

	// TTL elapsed: the key counts as unseen again and is re-marked.
	assert.False(t, c.CheckAndMark("a|1"))
	assert.True(t, c.CheckAndMark("a|1"))
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.CheckAndMark(fmt.Sprintf("a|%d", i))
	}
	assert.Equal(t, 3, c.Len())

	c.CheckAndMark("a|3")
	assert.Equal(t, 3, c.Len(), "capacity must hold")
	assert.False(t, c.CheckAndMark("a|0"), "oldest key must have been evicted")
	assert.True(t, c.CheckAndMark("a|3"), "newest key must survive")
}

func TestConcurrentCheckAndMark(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	const goroutines = 16
	var wg sync.WaitGroup
	passed := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("a|contended") {
				passed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(passed)

	count := 0
	for range passed {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent caller may pass")
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "sess-1|ABCD", MessageKey("sess-1", "ABCD"))
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close() // must not panic
}
