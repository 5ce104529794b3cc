package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers owns a set of goroutines that share one cancelable context. Every
// goroutine gets an index that is unique within the set, in the order they were added.
type StoppableWorkers struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	active  sync.WaitGroup
	started int
}

// NewStoppableWorkers runs the functions in separate goroutines. They can be stopped later.
func NewStoppableWorkers(funcs ...func(context.Context)) *StoppableWorkers {
	ctx, cancel := context.WithCancel(context.Background())
	sw := &StoppableWorkers{ctx: ctx, cancel: cancel}
	sw.AddWorkers(funcs...)
	return sw
}

// AddWorkers starts a goroutine for each function passed in. After Stop it is a no-op.
func (sw *StoppableWorkers) AddWorkers(funcs ...func(context.Context)) {
	for _, f := range funcs {
		sw.AddIndexedWorkers(1, func(ctx context.Context, _ int) { f(ctx) })
	}
}

// AddIndexedWorkers starts n goroutines running f, each with its own worker index. Indices
// continue from the workers already started. It returns the number of goroutines started,
// which is 0 after Stop.
func (sw *StoppableWorkers) AddIndexedWorkers(n int, f func(ctx context.Context, worker int)) int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.ctx.Err() != nil || n <= 0 {
		return 0
	}
	sw.active.Add(n)
	for i := 0; i < n; i++ {
		worker := sw.started + i
		goutils.PanicCapturingGo(func() {
			defer sw.active.Done()
			f(sw.ctx, worker)
		})
	}
	sw.started += n
	return n
}

// Started returns how many goroutines were ever started.
func (sw *StoppableWorkers) Started() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.started
}

// Stop cancels the shared context and waits for every goroutine to return. Calling it more
// than once is safe. It must not be called from one of the workers.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	sw.cancel()
	sw.mu.Unlock()
	sw.active.Wait()
}

// Context gets the context the workers are checking on.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.ctx
}
