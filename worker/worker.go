package worker

import (
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

var (
	workerQueue = make(chan func(), runtime.NumCPU()*16)
	pending     sync.WaitGroup
)

func init() {
	for i := 0; i < runtime.NumCPU(); i++ {
		go worker()
	}
}

func worker() {
	defer sentry.Recover()

	for {
		f, ok := <-workerQueue
		if !ok {
			return
		}

		f()
	}
}

// Submit queues a fire-and-forget task such as a webhook send or a
// best-effort database write. Submit never blocks: callers hold pipeline
// locks, so when every worker is busy and the queue is full the task is
// dropped and logged instead.
func Submit(f func()) {
	pending.Add(1)
	task := func() {
		defer pending.Done()
		f()
	}
	select {
	case workerQueue <- task:
	default:
		pending.Done()
		log.Warn().Msg("Worker queue saturated, task dropped")
	}
}

// Drain blocks until every queued task has finished or the timeout
// elapses, reporting whether the queue emptied. Called on shutdown so the
// final session flush reaches the database before it closes.
func Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
