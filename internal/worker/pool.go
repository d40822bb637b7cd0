// Package worker implements the bounded worker pool and supervisor
// described in §4.5: a fixed number of goroutines drain a shared queue
// while one supervisor goroutine handles periodic checkpointing and
// cooperative cancellation.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldvault/coldvault-agent/internal/interfaces"
	"github.com/coldvault/coldvault-agent/internal/model"
)

// Handler processes one work item. A non-nil error causes the pool to
// requeue the item through the shared queue's backoff policy.
type Handler func(ctx context.Context, item *model.Item) error

// Pool is a fixed-size set of workers draining a shared queue, plus the
// idle/interrupt bookkeeping the supervisor needs (§4.5).
type Pool struct {
	queue   interfaces.Queue
	logger  interfaces.Logger
	handler Handler
	size    int

	stopping  atomic.Bool
	idleCount atomic.Int32
	openFiles atomic.Int32
}

// NewPool creates a pool of size workers draining queue, dispatching every
// dequeued item to handler.
func NewPool(size int, queue interfaces.Queue, logger interfaces.Logger, handler Handler) *Pool {
	return &Pool{queue: queue, logger: logger, handler: handler, size: size}
}

// Stopping reports whether the pool has been asked to wind down.
func (p *Pool) Stopping() bool { return p.stopping.Load() }

// RequestStop flips the shared cooperative-cancellation flag every worker
// polls between items.
func (p *Pool) RequestStop() { p.stopping.Store(true) }

// Idle reports whether every worker is currently waiting for work.
func (p *Pool) Idle() bool { return int(p.idleCount.Load()) >= p.size }

// OpenFiles returns the number of output files currently open for writing,
// used by the download supervisor to know when in-flight writes have
// drained (§4.5).
func (p *Pool) OpenFiles() int32 { return p.openFiles.Load() }

// BeginFile/EndFile bracket an open output file so the supervisor can wait
// for in-flight writes to drain on interrupt.
func (p *Pool) BeginFile() { p.openFiles.Add(1) }
func (p *Pool) EndFile()   { p.openFiles.Add(-1) }

// Run starts size workers and blocks until every worker has exited, which
// happens once ctx is done or the pool has been asked to stop.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		if ctx.Err() != nil || p.stopping.Load() {
			return
		}

		item := p.queue.Dequeue()
		if item == nil {
			if p.stopping.Load() {
				return
			}
			p.idleCount.Add(1)
			select {
			case <-ctx.Done():
				p.idleCount.Add(-1)
				return
			case <-time.After(100 * time.Millisecond):
			}
			p.idleCount.Add(-1)
			continue
		}

		item.MarkProcessing()
		err := p.handler(ctx, item)
		if err != nil {
			if rqErr := p.queue.Requeue(item, err); rqErr != nil {
				p.logger.Error("item moved to dead-letter queue", "path", item.LocalPath, "error", rqErr)
			}
			continue
		}
		item.MarkCompleted()
	}
}
