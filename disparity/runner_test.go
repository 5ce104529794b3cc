package disparity

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/testutils"
)

type pairSource struct {
	mu     sync.Mutex
	pairs  [][2]*rimage.ColorImage
	err    error
	repeat bool
	next   int
}

func (s *pairSource) NextFrame(ctx context.Context) (*rimage.ColorImage, *rimage.ColorImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.pairs) {
		if s.err != nil {
			return nil, nil, s.err
		}
		if !s.repeat {
			return nil, nil, io.EOF
		}
		s.next = 0
	}
	pair := s.pairs[s.next]
	s.next++
	return pair[0], pair[1], nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames []int64
	means  []float64
	notify chan int64
}

func (s *recordingSink) WriteResult(ctx context.Context, frame int64, result *Result) error {
	sum := 0
	for _, d := range result.LeftDisparity.Data() {
		sum += int(d)
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.means = append(s.means, float64(sum)/float64(len(result.LeftDisparity.Data())))
	s.mu.Unlock()
	if s.notify != nil {
		select {
		case s.notify <- frame:
		default:
		}
	}
	return nil
}

// blockingSource waits for the run context before returning a frame.
type blockingSource struct {
	entered chan struct{}
}

func (s *blockingSource) NextFrame(ctx context.Context) (*rimage.ColorImage, *rimage.ColorImage, error) {
	close(s.entered)
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func newRunnerEstimator(t *testing.T) *Estimator {
	t.Helper()
	logger := golog.NewTestLogger(t)
	e, err := NewEstimator(context.Background(), Config{MaxDisparity: 12, Threads: 2}, 48, 32, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, e.Close(), test.ShouldBeNil)
	})
	return e
}

func TestRunnerDrainsSource(t *testing.T) {
	logger := golog.NewTestLogger(t)
	e := newRunnerEstimator(t)
	source := &pairSource{}
	for i := 0; i < 3; i++ {
		left, right := testutils.ShiftedStereoPair(48, 32, 2+i, int64(i))
		source.pairs = append(source.pairs, [2]*rimage.ColorImage{left, right})
	}
	sink := &recordingSink{}

	runner := NewRunner(e, source, sink, logger)
	test.That(t, runner.ID(), test.ShouldNotBeEmpty)
	runner.Start()
	test.That(t, runner.Wait(context.Background()), test.ShouldBeNil)
	runner.Stop()

	test.That(t, runner.Frames(), test.ShouldEqual, int64(3))
	test.That(t, sink.frames, test.ShouldResemble, []int64{1, 2, 3})
	test.That(t, len(sink.means), test.ShouldEqual, 3)

	st, err := runner.Stats()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Frames, test.ShouldEqual, int64(3))
	test.That(t, st.Total.Mean, test.ShouldBeGreaterThan, 0)
	test.That(t, st.Total.P95, test.ShouldBeGreaterThanOrEqualTo, st.Total.Median)
	test.That(t, st.CostFilter.Mean, test.ShouldBeLessThanOrEqualTo, st.Total.Mean)
}

func TestRunnerSourceError(t *testing.T) {
	logger := golog.NewTestLogger(t)
	e := newRunnerEstimator(t)
	left, right := testutils.ShiftedStereoPair(48, 32, 3, 7)
	source := &pairSource{pairs: [][2]*rimage.ColorImage{{left, right}}, err: errors.New("camera unplugged")}

	runner := NewRunner(e, source, &recordingSink{}, logger)
	runner.Start()
	err := runner.Wait(context.Background())
	runner.Stop()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera unplugged")
	test.That(t, runner.Frames(), test.ShouldEqual, int64(1))
}

func TestRunnerEstimatorError(t *testing.T) {
	logger := golog.NewTestLogger(t)
	e := newRunnerEstimator(t)
	source := &pairSource{pairs: [][2]*rimage.ColorImage{{rimage.NewColorImage(10, 10), rimage.NewColorImage(10, 10)}}}

	runner := NewRunner(e, source, &recordingSink{}, logger)
	runner.Start()
	err := runner.Wait(context.Background())
	runner.Stop()
	test.That(t, errors.Is(err, ErrFrameSizeChanged), test.ShouldBeTrue)
	test.That(t, runner.Frames(), test.ShouldEqual, int64(0))
	st, err := runner.Stats()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.Frames, test.ShouldEqual, int64(0))
}

func TestRunnerStop(t *testing.T) {
	logger := golog.NewTestLogger(t)
	e := newRunnerEstimator(t)
	left, right := testutils.ShiftedStereoPair(48, 32, 4, 9)
	source := &pairSource{pairs: [][2]*rimage.ColorImage{{left, right}}, repeat: true}
	sink := &recordingSink{notify: make(chan int64, 1)}

	runner := NewRunner(e, source, sink, logger)
	runner.Start()
	for frame := range sink.notify {
		if frame >= 2 {
			break
		}
	}
	runner.Stop()
	<-runner.Done()
	test.That(t, runner.Err(), test.ShouldBeNil)
	test.That(t, runner.Frames(), test.ShouldBeGreaterThanOrEqualTo, int64(2))
}

func TestRunnerStopUnblocksSource(t *testing.T) {
	logger := golog.NewTestLogger(t)
	e := newRunnerEstimator(t)
	source := &blockingSource{entered: make(chan struct{})}

	runner := NewRunner(e, source, &recordingSink{}, logger)
	runner.Start()
	<-source.entered

	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while the source was waiting on its context")
	}
	test.That(t, runner.Err(), test.ShouldBeNil)
	test.That(t, runner.Frames(), test.ShouldEqual, int64(0))
}
