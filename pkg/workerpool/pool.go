package workerpool

import (
	"sync"

	"github.com/coordkernel/coordkernel/pkg/log"
)

// Task is a unit of work submitted to the pool. Errors are logged by the
// worker that ran the task; the pool itself never surfaces them to the
// submitter, matching the fire-and-forget scheduled-operation model of
// spec.md §6.5.
type Task func() error

// Pool is a fixed-size set of goroutines draining a single task queue.
type Pool struct {
	size   int
	tasks  chan Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a Pool with size worker goroutines and a queue depth of
// queueLen. size and queueLen are both clamped to at least 1.
func New(size, queueLen int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueLen < 1 {
		queueLen = 1
	}
	return &Pool{
		size:   size,
		tasks:  make(chan Task, queueLen),
		stopCh: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Calling Start more than once is a
// no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	logger := log.WithComponent("workerpool")
	for {
		select {
		case task := <-p.tasks:
			if err := task(); err != nil {
				logger.Error().Err(err).Msg("task failed")
			}
		case <-p.stopCh:
			return
		}
	}
}

// Stop signals every worker goroutine to exit and waits for in-flight
// tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}

// Submit enqueues fn for execution by a worker goroutine. It blocks if the
// queue is full, and drops fn silently if the pool has already been
// stopped.
func (p *Pool) Submit(fn Task) {
	select {
	case p.tasks <- fn:
	case <-p.stopCh:
	}
}
