package disparity

import "context"

// StageBackend runs the cost stages of the pipeline on one kind of hardware. Every method
// reads and writes the shared Frame so the Estimator does not care which backend is active.
// After SelectDisparities the disparity maps of the frame are valid on the host.
type StageBackend interface {
	Kind() BackendKind
	BuildCostVolumes(ctx context.Context, f *Frame) error
	FilterCostVolumes(ctx context.Context, f *Frame) error
	SelectDisparities(ctx context.Context, f *Frame) error
	Close() error
}
