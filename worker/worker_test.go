package worker

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDrainWaitsForQueuedTasks(t *testing.T) {
	var done atomic.Int64
	const n = 8
	for i := 0; i < n; i++ {
		Submit(func() {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	}

	assert.True(t, Drain(2*time.Second))
	assert.Equal(t, int64(n), done.Load())
}

func TestSubmitNeverBlocksWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup

	// Park every worker, then fill the queue behind them.
	workers := runtime.NumCPU()
	started.Add(workers)
	for i := 0; i < workers; i++ {
		Submit(func() {
			started.Done()
			<-release
		})
	}
	started.Wait()
	for i := 0; i < cap(workerQueue); i++ {
		Submit(func() { <-release })
	}

	submitted := make(chan struct{})
	go func() {
		Submit(func() {})
		close(submitted)
	}()
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a saturated queue")
	}

	close(release)
	assert.True(t, Drain(5*time.Second))
}
