package utils

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestParallelForVisitsEveryIndex(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()
	test.That(t, pool.Size(), test.ShouldEqual, 4)

	for _, n := range []int{0, 1, 3, 16, 17, 1000} {
		visits := make([]int32, n)
		var mu sync.Mutex
		workersSeen := map[int]bool{}
		err := pool.ParallelFor(context.Background(), n, func(worker, i int) {
			mu.Lock()
			visits[i]++
			workersSeen[worker] = true
			mu.Unlock()
		})
		test.That(t, err, test.ShouldBeNil)
		for i := range visits {
			test.That(t, int(visits[i]), test.ShouldEqual, 1)
		}
		for worker := range workersSeen {
			test.That(t, worker, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, worker, test.ShouldBeLessThan, 4)
		}
	}
}

func TestParallelForRangeIsContiguous(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Stop()

	var total, empty atomic.Int64
	err := pool.ParallelForRange(context.Background(), 101, func(worker, from, to int) {
		if from >= to {
			empty.Inc()
		}
		total.Add(int64(to - from))
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, total.Load(), test.ShouldEqual, int64(101))
	test.That(t, empty.Load(), test.ShouldEqual, int64(0))
}

func TestParallelForPanic(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Stop()

	err := pool.ParallelFor(context.Background(), 10, func(worker, i int) {
		if i == 5 {
			panic("boom")
		}
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")

	// the pool survives a panic
	var count atomic.Int64
	err = pool.ParallelFor(context.Background(), 10, func(worker, i int) { count.Inc() })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count.Load(), test.ShouldEqual, int64(10))
}

func TestParallelForCanceled(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var count atomic.Int64
	err := pool.ParallelFor(ctx, 100, func(worker, i int) { count.Inc() })
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, count.Load(), test.ShouldEqual, int64(0))
}

func TestParallelForStoppedPool(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Stop()
	err := pool.ParallelFor(context.Background(), 4, func(worker, i int) {})
	test.That(t, errors.Is(err, ErrPoolStopped), test.ShouldBeTrue)
}

func TestMathHelpers(t *testing.T) {
	test.That(t, ClampInt(-3, 0, 5), test.ShouldEqual, 0)
	test.That(t, ClampInt(9, 0, 5), test.ShouldEqual, 5)
	test.That(t, ClampInt(2, 0, 5), test.ShouldEqual, 2)
	test.That(t, CeilDiv(10, 4), test.ShouldEqual, 3)
	test.That(t, CeilDiv(8, 4), test.ShouldEqual, 2)
	test.That(t, AbsF32(-1.5), test.ShouldEqual, float32(1.5))
	test.That(t, MaxInt(2, 7), test.ShouldEqual, 7)
	test.That(t, MinInt(2, 7), test.ShouldEqual, 2)
}
