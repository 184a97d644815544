package warmup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestExactlyOneLeader(t *testing.T) {
	for _, k := range []int{1, 2, 8, 64, 256} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			c := New()
			var winners atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})

			for i := 0; i < k; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					<-start
					if c.TryBecomeLeader(fmt.Sprintf("worker-%d", id)) {
						winners.Add(1)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), winners.Load())
			assert.Equal(t, InProgress, c.State())
			assert.NotEmpty(t, c.Leader())
		})
	}
}

func TestLosersDoNotBlock(t *testing.T) {
	c := New()
	require.True(t, c.TryBecomeLeader("leader"))

	returned := make(chan bool)
	go func() { returned <- c.TryBecomeLeader("other") }()

	select {
	case won := <-returned:
		assert.False(t, won)
	case <-time.After(time.Second):
		t.Fatal("TryBecomeLeader blocked while warm-up was in progress")
	}
}

func TestMarkDoneIsMonotonicAndIdempotent(t *testing.T) {
	c := New()
	assert.False(t, c.IsDone())

	// MarkDone before election is a no-op.
	c.MarkDone()
	assert.Equal(t, NotStarted, c.State())

	require.True(t, c.TryBecomeLeader("leader"))
	c.MarkDone()
	assert.True(t, c.IsDone())

	c.MarkDone()
	assert.True(t, c.IsDone())
	assert.False(t, c.TryBecomeLeader("late"))
	assert.True(t, c.IsDone())
	assert.Equal(t, "leader", c.Leader())
}

func TestDoneChannel(t *testing.T) {
	c := New()
	require.True(t, c.TryBecomeLeader("leader"))

	select {
	case <-c.Done():
		t.Fatal("done channel closed before MarkDone")
	default:
	}

	c.MarkDone()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after MarkDone")
	}
}

func TestDuration(t *testing.T) {
	c := New()
	assert.Zero(t, c.Duration())

	require.True(t, c.TryBecomeLeader("leader"))
	time.Sleep(5 * time.Millisecond)
	c.MarkDone()

	d := c.Duration()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Equal(t, d, c.Duration())
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
