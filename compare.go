// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// vqcompare psnr and ssim subcommand implementation.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/analysis"
	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
)

// Make sure CompareApp implements Commander interface.
var _ Commander = (*CompareApp)(nil)

// CompareApp compares a single reference/test pair with one metric.
type CompareApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Global flags
	gf globalFlags
	// Metric name as known to vqm.NewMetric
	metric string
	// Human readable metric label used in output
	label string
	// Print per-frame values
	flEachFrame bool
	// Per-frame JSON output file
	flJSON string
	// Plot output file
	flPlot string
	// Metric output
	out io.Writer
	// Progress bar destination, only used when it is a terminal
	progressOut *os.File
}

// CreatePSNRCommand will create CompareApp measuring PSNR.
func CreatePSNRCommand() *CompareApp {
	longHelp := `Subcommand "psnr" computes Peak Signal-to-Noise Ratio between reference and test
file, frame by frame, and prints the average over all frames. Identical frames
score 0.

Both files must have the same width and height. Video files are decoded with
ffmpeg, still images (png, jpeg, bmp, tiff, webp) and GIFs (all frames) are
decoded natively.

Examples:

  vqcompare psnr reference.mp4 test.mp4
  vqcompare psnr -each-frame -json frames.json reference.png test.png`

	return newCompareApp(vqm.PSNRName, "PSNR", longHelp)
}

// CreateSSIMCommand will create CompareApp measuring SSIM.
func CreateSSIMCommand() *CompareApp {
	longHelp := `Subcommand "ssim" computes Structural Similarity Index on luma between reference
and test file, frame by frame, and prints the average over all frames. Identical
frames score 1.

Gaussian window size and sigma are taken from configuration (ssim_window,
ssim_sigma).

Examples:

  vqcompare ssim reference.mp4 test.mp4
  vqcompare ssim -plot ssim.png -conf config.yaml reference.mkv test.mkv`

	return newCompareApp(vqm.SSIMName, "SSIM", longHelp)
}

func newCompareApp(metric, label, longHelp string) *CompareApp {
	app := &CompareApp{
		fs:          flag.NewFlagSet(metric, flag.ContinueOnError),
		gf:          globalFlags{},
		metric:      metric,
		label:       label,
		out:         os.Stdout,
		progressOut: os.Stderr,
	}
	app.gf.Register(app.fs)
	app.fs.BoolVar(&app.flEachFrame, "each-frame", false, fmt.Sprintf("Also print %s of each frame", label))
	app.fs.StringVar(&app.flJSON, "json", "", "Write per-frame metrics to JSON file (optional)")
	app.fs.StringVar(&app.flPlot, "plot", "", "Write per-frame metrics plot to PNG file (optional)")
	app.fs.Usage = func() {
		fmt.Fprintf(app.fs.Output(), "%s [flags] reference_file test_file\n\n", app.fs.Name())
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

func (a *CompareApp) Name() string {
	return a.fs.Name()
}

func (a *CompareApp) Help() {
	a.fs.Usage()
}

// init will do App state initialization.
func (a *CompareApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.Name()),
		}
	}
	a.gf.Apply()

	if a.fs.NArg() != 2 {
		a.Help()
		return &AppError{
			exitCode: 2,
			msg:      "expected exactly two arguments: reference_file test_file",
		}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	return nil
}

// Run is main entry point into CompareApp execution.
func (a *CompareApp) Run(args []string) error {
	if err := a.init(args); err != nil {
		return err
	}
	refFile, testFile := a.fs.Arg(0), a.fs.Arg(1)
	logging.Debugf("Application configuration: %#v", a.cfg)

	ffCfg, err := a.cfg.FfmpegConfig()
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	m, err := vqm.NewMetric(a.metric, a.cfg.MetricConfig())
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	progress := newFrameProgress(a.progressOut, a.label)
	report, err := vqm.CompareFiles(frame.NewOpener(ffCfg), refFile, testFile, m, progress.Options()...)
	progress.Finish()
	if err != nil {
		return compareError(err)
	}

	fmt.Fprintf(a.out, "Average %s: %v\n", a.label, report.Score)
	if a.flEachFrame {
		fmt.Fprintf(a.out, "%s each frame: %v\n", a.label, report.Frames.Values())
	}

	if a.flJSON != "" {
		if err := writeFrameMetrics(a.flJSON, report.Frames); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
		logging.Infof("Per-frame %s written to %s", a.label, a.flJSON)
	}

	if a.flPlot != "" {
		title := strings.TrimSuffix(path.Base(testFile), path.Ext(testFile))
		if err := analysis.MultiPlotVqm(report.Frames.Values(), a.label, title, a.flPlot); err != nil {
			return &AppError{exitCode: 1, msg: fmt.Sprintf("creating %s multiplot: %s", a.label, err)}
		}
		logging.Infof("%s multi-plot done: %s", a.label, a.flPlot)
	}

	return nil
}

// compareError maps comparison failures onto CLI exit codes.
func compareError(err error) *AppError {
	var dErr *vqm.DimensionMismatchError
	switch {
	case errors.As(err, &dErr):
		return &AppError{exitCode: 4, msg: fmt.Sprintf("files have different dimensions: %s", err)}
	case errors.Is(err, frame.ErrStreamUnavailable):
		return &AppError{exitCode: 3, msg: fmt.Sprintf("could not open reference or test file: %s", err)}
	default:
		return &AppError{exitCode: 1, msg: err.Error()}
	}
}

// writeFrameMetrics saves per-frame metrics as JSON to fPath.
func writeFrameMetrics(fPath string, fm vqm.FrameMetrics) error {
	f, err := os.Create(fPath)
	if err != nil {
		return fmt.Errorf("writeFrameMetrics() os.Create: %w", err)
	}
	defer f.Close()
	if err := fm.ToJSON(f); err != nil {
		return fmt.Errorf("writeFrameMetrics(): %w", err)
	}
	return nil
}
