package disparity

import "github.com/pkg/errors"

var (
	// ErrDimensionMismatch means the left and right images differ in size.
	ErrDimensionMismatch = errors.New("left and right images must have the same dimensions")
	// ErrFrameSizeChanged means the images do not match the size the estimator was built for.
	// A new Estimator is needed.
	ErrFrameSizeChanged = errors.New("frame size differs from the size the estimator was built for")
	// ErrSingularCovariance means a guide covariance matrix could not be inverted.
	ErrSingularCovariance = errors.New("guide covariance matrix is singular")
	// ErrNoImages means Process was called before SetImages.
	ErrNoImages = errors.New("no stereo pair has been set")
	// ErrBackendUnavailable means the requested backend was not built.
	ErrBackendUnavailable = errors.New("backend is not available")
	// ErrEstimatorClosed means the estimator was used after Close.
	ErrEstimatorClosed = errors.New("estimator is closed")
)
