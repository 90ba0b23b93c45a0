package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of work. The context it receives is the one passed to Submit.
type Task func(ctx context.Context)

type Config struct {
	Size int
}

type job struct {
	ctx  context.Context
	task Task
}

// Pool runs tasks on a fixed number of long-lived workers. Submit never blocks
// and never rejects: tasks beyond capacity wait in a FIFO queue.
type Pool struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	running int
	closed  bool

	wg sync.WaitGroup
}

func New(cfg Config) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}

	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	return p
}

// Submit queues task. Returns ErrPoolClosed once Shutdown has begun; the task
// is not run in that case.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job{ctx: ctx, task: task})
	p.cond.Signal()
	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		p.run(next)

		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(j.ctx, "panic recovered in worker pool task", "panic", fmt.Sprint(r))
		}
	}()
	j.task(j.ctx)
}

// Shutdown stops accepting tasks and lets the workers finish everything already
// queued. It returns when the workers exit or ctx is done, whichever is first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		stats := p.Stats()
		return fmt.Errorf("draining worker pool (%d running, %d queued): %w",
			stats.Running, stats.Queued, ctx.Err())
	}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size    int
	Running int
	Queued  int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:    p.size,
		Running: p.running,
		Queued:  len(p.queue),
	}
}
