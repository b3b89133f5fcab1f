package pool

import (
	"context"
	"sync"

	"squish/logger"
)

// Task is one unit of work dispatched to a worker. The context is
// cancelled when the worker is terminated or replaced.
type Task func(ctx context.Context)

// Worker is an isolated execution unit: a goroutine draining a private
// task channel. A worker never shares state with other workers; all
// communication happens through task dispatch and whatever messages the
// task itself emits.
type Worker struct {
	id     int
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the worker's slot number, for logging.
func (w *Worker) ID() int { return w.id }

func (w *Worker) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.tasks:
			t(w.ctx)
		}
	}
}

// Dispatch hands a task to a worker. The caller must hold the worker via
// AcquireIdle; a reserved worker has no in-flight task, so the send
// never blocks unless the worker was terminated.
func (w *Worker) Dispatch(t Task) {
	select {
	case w.tasks <- t:
	case <-w.ctx.Done():
	}
}

// Pool owns a fixed set of workers and their busy/idle flags. The pool
// exclusively tracks which item each busy worker is serving; a worker is
// never assigned while busy.
type Pool struct {
	mu      sync.Mutex
	workers []*Worker
	busy    map[*Worker]string // worker -> current item id
	closed  bool
}

// New creates a pool of n workers. n is clamped to at least 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{busy: make(map[*Worker]string)}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, spawn(i))
	}
	logger.Debugf("execution pool initialized with %d workers", n)
	return p
}

func spawn(id int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{id: id, tasks: make(chan Task, 1), ctx: ctx, cancel: cancel}
	go w.run()
	return w
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// BusyCount returns the number of workers currently reserved.
func (p *Pool) BusyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.busy)
}

// AcquireIdle reserves an idle worker for the given item and marks it
// busy. Returns nil when every worker is busy or the pool is terminated.
func (p *Pool) AcquireIdle(itemID string) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	for _, w := range p.workers {
		if _, busy := p.busy[w]; !busy {
			p.busy[w] = itemID
			return w
		}
	}
	return nil
}

// Current returns the item id a worker is serving, if any.
func (p *Pool) Current(w *Worker) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.busy[w]
	return id, ok
}

// Release marks a worker idle again.
func (p *Pool) Release(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.busy, w)
}

// Replace force-terminates a worker and spawns a fresh one in its slot.
// Any in-flight task sees its context cancelled.
func (p *Pool) Replace(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w.cancel()
	delete(p.busy, w)
	if p.closed {
		return
	}
	for i, cur := range p.workers {
		if cur == w {
			p.workers[i] = spawn(w.id)
			return
		}
	}
}

// TerminateAll force-terminates every worker. In-flight work is lost.
// The pool accepts no further acquisitions; idempotent.
func (p *Pool) TerminateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, w := range p.workers {
		w.cancel()
	}
	p.busy = make(map[*Worker]string)
	logger.Debug("execution pool terminated")
}
