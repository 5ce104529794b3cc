// Package main runs the stereo disparity pipeline on an image pair from disk.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/edaniels/golog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"go.viam.com/disparity/compute"
	_ "go.viam.com/disparity/compute/emulated" // registers the emulated device
	"go.viam.com/disparity/disparity"
	"go.viam.com/disparity/logging"
	"go.viam.com/disparity/rimage"
)

const (
	flagConfig       = "config"
	flagMaxDisparity = "max-disparity"
	flagBackend      = "backend"
	flagDevice       = "device"
	flagThreads      = "threads"
	flagSubsample    = "subsample"
	flagFrames       = "frames"
	flagOut          = "out"
	flagScale        = "scale"
	flagPretty       = "pretty"
	flagDebug        = "debug"
	flagLogLevel     = "log-level"
	flagQuiet        = "quiet"
)

func main() {
	if err := realMain(os.Args[1:], os.Stdout); err != nil {
		logging.Global().Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "stereo",
		Usage:     "compute left and right disparity maps of a rectified stereo pair",
		ArgsUsage: "<left image> <right image>",
		Writer:    out,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load estimator configuration from `FILE`; flags override it",
			},
			&cli.IntFlag{
				Name:  flagMaxDisparity,
				Value: 64,
				Usage: "number of disparity planes",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Value: string(disparity.BackendCPU),
				Usage: "cpu or gpu",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Usage: "compute device to open for the gpu backend; defaults to the first one",
			},
			&cli.IntFlag{
				Name:  flagThreads,
				Usage: "worker goroutines; 0 uses every cpu",
			},
			&cli.IntFlag{
				Name:  flagSubsample,
				Value: 1,
				Usage: "guided filter subsampling factor",
			},
			&cli.IntFlag{
				Name:  flagFrames,
				Value: 1,
				Usage: "run the pair this many times and report timing statistics",
			},
			&cli.PathFlag{
				Name:  flagOut,
				Value: ".",
				Usage: "directory the disparity images are written to",
			},
			&cli.IntFlag{
				Name:  flagScale,
				Value: 4,
				Usage: "grayscale multiplier for written disparity maps",
			},
			&cli.BoolFlag{
				Name:  flagPretty,
				Usage: "write color coded disparity maps instead of grayscale",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging; same as --log-level debug",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "minimum `LEVEL` to log: debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    flagQuiet,
				Aliases: []string{"q"},
				Usage:   "disable logging",
			},
		},
		Before: setupLogging,
		Action: run,
	}
}

// setupLogging installs the logger chosen by the flags as the global logger.
func setupLogging(c *cli.Context) error {
	if c.Bool(flagQuiet) {
		logging.ReplaceGlobal(logging.NewBlankLogger("stereo"))
		return nil
	}
	level, err := logging.ParseLevel(c.String(flagLogLevel))
	if err != nil {
		return err
	}
	if c.Bool(flagDebug) {
		level = zapcore.DebugLevel
	}
	logging.ReplaceGlobal(logging.NewLoggerAtLevel("stereo", level))
	return nil
}

func realMain(args []string, out io.Writer) error {
	return newApp(out).Run(append([]string{"stereo"}, args...))
}

func configFromFlags(c *cli.Context) (disparity.Config, error) {
	var cfg disparity.Config
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = disparity.ReadConfigFile(path); err != nil {
			return disparity.Config{}, err
		}
	}
	if cfg.MaxDisparity == 0 || c.IsSet(flagMaxDisparity) {
		cfg.MaxDisparity = c.Int(flagMaxDisparity)
	}
	if cfg.Backend == "" || c.IsSet(flagBackend) {
		cfg.Backend = disparity.BackendKind(c.String(flagBackend))
	}
	if c.IsSet(flagDevice) {
		cfg.Device = c.String(flagDevice)
	}
	if c.IsSet(flagThreads) {
		cfg.Threads = c.Int(flagThreads)
	}
	if cfg.Subsample == 0 || c.IsSet(flagSubsample) {
		cfg.Subsample = c.Int(flagSubsample)
	}
	if err := cfg.Validate("stereo"); err != nil {
		return disparity.Config{}, err
	}
	return cfg, nil
}

// repeatSource hands out the same pair a fixed number of times.
type repeatSource struct {
	left, right *rimage.ColorImage
	remaining   int
}

func (s *repeatSource) NextFrame(ctx context.Context) (*rimage.ColorImage, *rimage.ColorImage, error) {
	if s.remaining <= 0 {
		return nil, nil, io.EOF
	}
	s.remaining--
	return s.left, s.right, nil
}

// imageSink writes the maps of the last frame it sees.
type imageSink struct {
	dir          string
	scale        int
	pretty       bool
	maxDisparity int
	last         int64
	backend      disparity.BackendKind
	logger       golog.Logger
}

func (s *imageSink) WriteResult(ctx context.Context, frame int64, result *disparity.Result) error {
	s.backend = result.Backend
	if frame != s.last {
		return nil
	}
	for name, dm := range map[string]*rimage.DisparityMap{
		"left_disparity.png":  result.LeftDisparity,
		"right_disparity.png": result.RightDisparity,
	} {
		path := filepath.Join(s.dir, name)
		var err error
		if s.pretty {
			err = rimage.WriteImageToFile(path, dm.ToPrettyPicture(s.maxDisparity))
		} else {
			err = rimage.WriteImageToFile(path, dm.ToGray(s.scale))
		}
		if err != nil {
			return err
		}
		s.logger.Debugw("wrote disparity map", "path", path)
	}
	return nil
}

func run(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("stereo needs <left image> <right image>")
	}
	if c.Int(flagFrames) < 1 {
		return errors.Errorf("--%s must be at least 1", flagFrames)
	}
	if c.Int(flagScale) < 1 {
		return errors.Errorf("--%s must be at least 1", flagScale)
	}
	cfg, err := configFromFlags(c)
	if err != nil {
		return err
	}
	left, err := rimage.ReadColorImageFromFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	right, err := rimage.ReadColorImageFromFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	if !left.SameSize(right) {
		return errors.Wrapf(disparity.ErrDimensionMismatch, "%s and %s", c.Args().Get(0), c.Args().Get(1))
	}
	if err := os.MkdirAll(c.Path(flagOut), 0o750); err != nil {
		return errors.Wrap(err, "cannot create output directory")
	}

	ctx := c.Context
	logger := logging.Global()
	estimator, err := disparity.NewEstimator(ctx, cfg, left.Width(), left.Height(), compute.NewPlatform(logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := estimator.Close(); err != nil {
			logger.Errorw("cannot close estimator", "error", err)
		}
	}()

	frames := c.Int(flagFrames)
	sink := &imageSink{
		dir:          c.Path(flagOut),
		scale:        c.Int(flagScale),
		pretty:       c.Bool(flagPretty),
		maxDisparity: estimator.Config().MaxDisparity,
		last:         int64(frames),
		logger:       logger,
	}
	runner := disparity.NewRunner(estimator, &repeatSource{left: left, right: right, remaining: frames}, sink, logger)
	runner.Start()
	err = runner.Wait(ctx)
	runner.Stop()
	if err != nil {
		return err
	}
	st, err := runner.Stats()
	if err != nil {
		return err
	}
	printStats(c.App.Writer, left, estimator, sink.backend, st)
	return nil
}

func printStats(out io.Writer, img *rimage.ColorImage, e *disparity.Estimator, backend disparity.BackendKind, st disparity.RunStats) {
	ms := func(d time.Duration) string {
		return fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
	}
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%dx%d, %d disparities, %s backend, %d frames",
		img.Width(), img.Height(), e.Config().MaxDisparity, backend, st.Frames))
	t.AppendHeader(table.Row{"Stage", "Mean (ms)", "Median (ms)", "P95 (ms)"})
	for _, row := range []struct {
		name string
		s    disparity.StageStats
	}{
		{"cost construction", st.CostConstruction},
		{"cost filter", st.CostFilter},
		{"selection", st.Selection},
		{"post processing", st.PostProcess},
	} {
		t.AppendRow(table.Row{row.name, ms(row.s.Mean), ms(row.s.Median), ms(row.s.P95)})
	}
	t.AppendFooter(table.Row{"total", ms(st.Total.Mean), ms(st.Total.Median), ms(st.Total.P95)})
	fmt.Fprintln(out, t.Render())
}
