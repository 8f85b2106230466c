package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	ErrMustNotBeZero = errors.New("worker count must be greater than zero")
	ErrQueueFull     = errors.New("pool queue full")
	ErrShutdown      = errors.New("pool shut down")
)

// Task is a unit of background work.
type Task func()

// Pool is a fixed set of workers draining a bounded task queue.
type Pool struct {
	wg      sync.WaitGroup
	mu      sync.RWMutex
	tasks   chan Task
	closed  bool
	workers int
	active  atomic.Int32
	logger  *slog.Logger
	metrics *Metrics
}

// New starts workers goroutines. The worker count is fixed for the
// lifetime of the pool.
func New(workers int, optFns ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers[%d] %w", workers, ErrMustNotBeZero)
	}

	opts := options{queueSize: DefaultQueueSize}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying pool option: %w", err)
		}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	p := &Pool{
		tasks:   make(chan Task, opts.queueSize),
		workers: workers,
		logger:  opts.logger,
		metrics: opts.metrics,
	}

	p.wg.Add(workers)
	for range workers {
		go p.work()
	}

	return p, nil
}

// Submit queues t for execution and returns immediately.
func (p *Pool) Submit(t Task) error {
	if t == nil {
		return errors.New("task must not be nil")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrShutdown
	}

	select {
	case p.tasks <- t:
		p.metrics.queued()
		return nil
	default:
		p.metrics.rejected()
		return fmt.Errorf("%w: %d tasks waiting", ErrQueueFull, cap(p.tasks))
	}
}

// Shutdown stops accepting work. Tasks already queued still run.
// It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}

// Wait blocks until every worker has exited, which only happens
// after Shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close shuts the pool down and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.Shutdown()
	p.Wait()
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int { return p.workers }

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.tasks) }

// Active returns the number of tasks currently running.
func (p *Pool) Active() int { return int(p.active.Load()) }

func (p *Pool) work() {
	defer p.wg.Done()

	for t := range p.tasks {
		p.run(t)
	}
}

// run executes t, recovering a panic so one bad task cannot take a
// worker, and the process, down with it.
func (p *Pool) run(t Task) {
	p.active.Add(1)
	p.metrics.started()

	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil {
			p.metrics.finished(true)
			p.logger.Error("pool task panicked", "panic", r, "stack", string(debug.Stack()))
			return
		}
		p.metrics.finished(false)
	}()

	t()
}
