package disparity

import (
	"encoding/json"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/disparity/utils"
)

// BackendKind selects where the cost stages run.
type BackendKind string

// Backends.
const (
	BackendCPU BackendKind = "cpu"
	BackendGPU BackendKind = "gpu"
)

// Limits and defaults of the tunable parameters.
const (
	MaxSupportedDisparity = 256
	DefaultFilterRadius   = 9
	MaxFilterRadius       = 32
	MaxSubsample          = 8
	DefaultGPUBatchPlanes = 8
	DefaultMedianRadius   = 9
	DefaultSigmaSpatial   = 9.0
	DefaultSigmaColor     = 0.1
)

// covarianceEpsilon regularizes the diagonal of every guide covariance matrix.
const covarianceEpsilon float32 = 1e-4

// Config is the runtime configuration of an Estimator.
type Config struct {
	MaxDisparity    int         `json:"max_disparity"`
	Threads         int         `json:"threads,omitempty"`
	Backend         BackendKind `json:"backend,omitempty"`
	Device          string      `json:"device,omitempty"`
	Subsample       int         `json:"subsample,omitempty"`
	FilterRadius    int         `json:"filter_radius,omitempty"`
	GPUBatchPlanes  int         `json:"gpu_batch_planes,omitempty"`
	MedianRadius    int         `json:"median_radius,omitempty"`
	SigmaSpatial    float64     `json:"sigma_spatial,omitempty"`
	SigmaColor      float64     `json:"sigma_color,omitempty"`
	MedianAllPixels bool        `json:"median_all_pixels,omitempty"`
}

// NewDefaultConfig returns a CPU configuration searching maxDisparity hypotheses.
func NewDefaultConfig(maxDisparity int) Config {
	return Config{MaxDisparity: maxDisparity}.WithDefaults()
}

// WithDefaults fills every zero field with its default.
func (cfg Config) WithDefaults() Config {
	if cfg.Backend == "" {
		cfg.Backend = BackendCPU
	}
	if cfg.Subsample == 0 {
		cfg.Subsample = 1
	}
	if cfg.FilterRadius == 0 {
		cfg.FilterRadius = DefaultFilterRadius
	}
	if cfg.GPUBatchPlanes == 0 {
		cfg.GPUBatchPlanes = DefaultGPUBatchPlanes
	}
	if cfg.MedianRadius == 0 {
		cfg.MedianRadius = DefaultMedianRadius
	}
	if cfg.SigmaSpatial == 0 {
		cfg.SigmaSpatial = DefaultSigmaSpatial
	}
	if cfg.SigmaColor == 0 {
		cfg.SigmaColor = DefaultSigmaColor
	}
	return cfg
}

// Validate ensures all parts of the config are valid. Zero fields are accepted since they
// take their default.
func (cfg *Config) Validate(path string) error {
	if cfg.MaxDisparity == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_disparity")
	}
	if cfg.MaxDisparity < 0 || cfg.MaxDisparity > MaxSupportedDisparity {
		return utils.NewOutOfRangeError(path, "max_disparity", cfg.MaxDisparity, 1, MaxSupportedDisparity)
	}
	if cfg.Threads < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("\"threads\" cannot be negative, got %d", cfg.Threads))
	}
	switch cfg.Backend {
	case "", BackendCPU, BackendGPU:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown backend %q, must be %q or %q", cfg.Backend, BackendCPU, BackendGPU))
	}
	if cfg.Subsample < 0 || cfg.Subsample > MaxSubsample {
		return utils.NewOutOfRangeError(path, "subsample", cfg.Subsample, 1, MaxSubsample)
	}
	if cfg.FilterRadius < 0 || cfg.FilterRadius > MaxFilterRadius {
		return utils.NewOutOfRangeError(path, "filter_radius", cfg.FilterRadius, 1, MaxFilterRadius)
	}
	if cfg.GPUBatchPlanes < 0 || cfg.GPUBatchPlanes > MaxSupportedDisparity {
		return utils.NewOutOfRangeError(path, "gpu_batch_planes", cfg.GPUBatchPlanes, 1, MaxSupportedDisparity)
	}
	if cfg.MedianRadius < 0 || cfg.MedianRadius > MaxFilterRadius {
		return utils.NewOutOfRangeError(path, "median_radius", cfg.MedianRadius, 1, MaxFilterRadius)
	}
	if cfg.SigmaSpatial < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("\"sigma_spatial\" must be positive, got %v", cfg.SigmaSpatial))
	}
	if cfg.SigmaColor < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("\"sigma_color\" must be positive, got %v", cfg.SigmaColor))
	}
	return nil
}

// ConfigFromAttributes decodes a loosely typed attribute map, as found in a larger JSON
// document, into a Config.
func ConfigFromAttributes(attributes map[string]interface{}) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "error creating decoder for disparity config")
	}
	if err := decoder.Decode(attributes); err != nil {
		return Config{}, errors.Wrap(err, "error decoding disparity config")
	}
	return cfg, nil
}

// ReadConfigFile reads a JSON config file and validates it.
func ReadConfigFile(path string) (Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot read config %q", path)
	}
	var attributes map[string]interface{}
	if err := json.Unmarshal(data, &attributes); err != nil {
		return Config{}, errors.Wrapf(err, "cannot parse config %q", path)
	}
	cfg, err := ConfigFromAttributes(attributes)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
