// Package pool runs fire-and-forget units of work on a fixed set of
// worker goroutines.
//
// Work is queued on a bounded channel. [Pool.Submit] never blocks: when
// the queue is full it returns [ErrQueueFull] so the caller can apply
// backpressure instead of growing memory without bound.
//
//	p, err := pool.New(4, pool.WithQueueSize(256))
//	if err != nil { ... }
//	defer p.Close()
//
//	if err := p.Submit(func() { ... }); err != nil { ... }
//
// Tasks have no result channel; a task reports progress by writing
// into state it shares with the submitter.
package pool
