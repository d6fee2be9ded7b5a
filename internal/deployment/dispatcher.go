package deployment

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrQueueFull is returned by Submit when too many cycles are waiting.
	ErrQueueFull = errors.New("deploy queue is full")
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("dispatcher is shut down")
)

// Deployer runs one deploy cycle.
type Deployer interface {
	Deploy(ctx context.Context, t Target) (*Report, error)
}

// Result is delivered once per submitted cycle.
type Result struct {
	Report *Report
	Err    error
}

// Dispatcher runs deploy cycles off the request goroutine. At most Workers
// cycles run at once, at most Queue are accepted in total, and cycles for
// the same Target key never overlap.
type Dispatcher struct {
	deployer Deployer
	locks    *LockManager
	workers  *semaphore.Weighted
	queue    *semaphore.Weighted
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher. workers and queue are raised to 1.
func NewDispatcher(d Deployer, workers, queue int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queue < workers {
		queue = workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		deployer: d,
		locks:    NewLockManager(),
		workers:  semaphore.NewWeighted(int64(workers)),
		queue:    semaphore.NewWeighted(int64(queue)),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit queues a cycle for t. The cycle runs under the dispatcher's own
// context, so a caller that stops waiting does not abort a pull half way.
func (d *Dispatcher) Submit(t Target) (<-chan Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if !d.queue.TryAcquire(1) {
		return nil, ErrQueueFull
	}

	ch := make(chan Result, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.queue.Release(1)
		ch <- d.run(t)
	}()
	return ch, nil
}

func (d *Dispatcher) run(t Target) Result {
	release, err := d.locks.Acquire(d.ctx, t.Key())
	if err != nil {
		return Result{Err: err}
	}
	defer release()

	if err := d.workers.Acquire(d.ctx, 1); err != nil {
		return Result{Err: err}
	}
	defer d.workers.Release(1)

	report, err := d.deployer.Deploy(d.ctx, t)
	return Result{Report: report, Err: err}
}

// Shutdown stops accepting cycles and waits for running ones. If ctx ends
// first, running cycles are cancelled, which kills their child processes.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("cancelling running deploys")
		d.cancel()
		<-done
		return ctx.Err()
	}
}
