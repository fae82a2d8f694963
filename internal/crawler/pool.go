package crawler

import (
	"context"
	"log/slog"
	"sync"
)

// workerPool runs tasks on a fixed number of goroutines. The queue is
// unbounded: download tasks submit extraction tasks, and a bounded queue
// could deadlock the two pools against each other.
type workerPool struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	wg sync.WaitGroup
}

func newWorkerPool(name string, workers int, logger *slog.Logger) *workerPool {
	p := &workerPool{name: name, logger: logger}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for range workers {
		go p.work()
	}
	return p
}

// submit queues task. It never blocks and fails only after shutdown.
func (p *workerPool) submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errPoolClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

func (p *workerPool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *workerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("recovered panic in worker", "pool", p.name, "panic", r)
		}
	}()
	task()
}

// shutdown stops accepting work, drops queued tasks and waits for running
// tasks until ctx is done. It returns the number of dropped tasks.
func (p *workerPool) shutdown(ctx context.Context) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, nil
	}
	p.closed = true
	dropped := len(p.queue)
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return dropped, nil
	case <-ctx.Done():
		return dropped, ctx.Err()
	}
}
