package utils

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ParallelFactor controls the default level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// chunksPerWorker is how many ranges each worker receives on average from ParallelForRange.
// More than one lets fast workers pick up slack from slow ones.
const chunksPerWorker = 4

// ErrPoolStopped is returned when work is submitted to a pool that has been stopped.
var ErrPoolStopped = errors.New("worker pool is stopped")

type (
	// MemberWorkFunc runs for a single index of a parallel loop. worker identifies the pool
	// goroutine running it and is always in [0, Size()).
	MemberWorkFunc func(worker, i int)
	// RangeWorkFunc runs for the half-open index range [from, to) of a parallel loop.
	RangeWorkFunc func(worker, from, to int)
)

type poolTask struct {
	run  func(worker int) error
	done func(err error)
}

// WorkerPool is a fixed set of goroutines that serve parallel loops. The goroutines live
// until Stop is called, so callers pay for goroutine startup once rather than per loop.
//
// A loop submitted from inside another loop's work function on the same pool can deadlock;
// nested parallelism needs its own pool.
type WorkerPool struct {
	size    int
	tasks   chan poolTask
	workers *StoppableWorkers
}

// NewWorkerPool starts a pool with size goroutines. A size <= 0 uses ParallelFactor.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = ParallelFactor
	}
	pool := &WorkerPool{
		size:  size,
		tasks: make(chan poolTask),
	}
	pool.workers = NewStoppableWorkers()
	pool.workers.AddIndexedWorkers(size, func(ctx context.Context, worker int) {
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-pool.tasks:
				task.done(runCapturingPanic(worker, task.run))
			}
		}
	})
	return pool
}

// Size returns the number of goroutines in the pool.
func (p *WorkerPool) Size() int {
	return p.size
}

// Stop shuts the pool goroutines down and waits for them to exit.
func (p *WorkerPool) Stop() {
	p.workers.Stop()
}

// ParallelFor calls f once for every index in [0, n). Indices are handed out in contiguous
// ranges, each index is visited exactly once, and ParallelFor returns after all of them ran.
func (p *WorkerPool) ParallelFor(ctx context.Context, n int, f MemberWorkFunc) error {
	return p.ParallelForRange(ctx, n, func(worker, from, to int) {
		for i := from; i < to; i++ {
			f(worker, i)
		}
	})
}

// ParallelForRange splits [0, n) into contiguous ranges and runs f over them on the pool.
// A panic inside f is recovered and returned as an error. The context is checked before
// each range starts; ranges already running are not interrupted.
func (p *WorkerPool) ParallelForRange(ctx context.Context, n int, f RangeWorkFunc) error {
	if n <= 0 {
		return nil
	}
	numChunks := MinInt(n, p.size*chunksPerWorker)
	chunkSize := n / numChunks
	extra := n % numChunks

	var (
		wait    sync.WaitGroup
		errMu   sync.Mutex
		loopErr error
	)
	storeError := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		loopErr = multierr.Combine(loopErr, err)
		errMu.Unlock()
	}

	from := 0
	for chunk := 0; chunk < numChunks; chunk++ {
		to := from + chunkSize
		if chunk < extra {
			to++
		}
		chunkFrom, chunkTo := from, to
		from = to

		task := poolTask{
			run: func(worker int) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				f(worker, chunkFrom, chunkTo)
				return nil
			},
			done: func(err error) {
				storeError(err)
				wait.Done()
			},
		}
		wait.Add(1)
		select {
		case p.tasks <- task:
		case <-p.workers.Context().Done():
			wait.Done()
			storeError(ErrPoolStopped)
		}
	}
	wait.Wait()
	return loopErr
}

func runCapturingPanic(worker int, run func(worker int) error) (err error) {
	defer func() {
		if thePanic := recover(); thePanic != nil {
			err = errors.Errorf("got panic running parallel work: %v", thePanic)
		}
	}()
	return run(worker)
}
