package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool runs tasks on a fixed number of in-process workers fed by a bounded
// queue. When the queue is full the task is dropped and logged.
type Pool struct {
	handler *Handler
	queue   chan Task
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(handler *Handler, workers, queueSize int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		handler: handler,
		queue:   make(chan Task, queueSize),
		timeout: 10 * time.Second,
		log:     log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		run(ctx, p.handler, p.log, t)
		cancel()
	}
}

// Dispatch never blocks. The caller's context is not carried over because
// the task outlives the request.
func (p *Pool) Dispatch(_ context.Context, t Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("task dropped, pool closed", zap.String("kind", string(t.Kind)), zap.String("asset_id", t.AssetID))
		return
	}
	select {
	case p.queue <- t:
	default:
		p.log.Warn("task dropped, queue full", zap.String("kind", string(t.Kind)), zap.String("asset_id", t.AssetID))
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
