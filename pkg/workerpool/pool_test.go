package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := New(2, 8)
	p.Start()
	defer p.Stop()

	var count int64
	const n = 20
	for i := 0; i < n; i++ {
		p.Submit(func() error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) == n
	}, time.Second, 10*time.Millisecond)
}

func TestPool_StopWaitsForInFlightTasks(t *testing.T) {
	p := New(1, 1)
	p.Start()

	done := make(chan struct{})
	p.Submit(func() error {
		close(done)
		return nil
	})

	<-done
	p.Stop()
}
