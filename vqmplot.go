// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// vqcompare tool's vqmplot subcommand implementation.

package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/analysis"
	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
)

// Make sure VQMPlotApp implements Commander interface.
var _ Commander = (*VQMPlotApp)(nil)

// VQMPlotApp is vqmplot subcommand context that implements Commander interface.
type VQMPlotApp struct {
	// FlagSet instance
	fs *flag.FlagSet
	// Per-frame metrics JSON file
	flInFile string
	// Metric name used for labels
	flMetric string
	// Plot output file
	flOutFile string
	// Global flags
	gf globalFlags
}

// CreateVQMPlotCommand will create Commander instance from VQMPlotApp.
func CreateVQMPlotCommand() Commander {
	longHelp := `Subcommand "vqmplot" will create per-frame, histogram and CDF plots from per-frame
metrics JSON file, as written by "psnr -json", "ssim -json" or "batch".

Examples:

  vqcompare vqmplot -i frames.json -m PSNR -o psnr.png`
	app := &VQMPlotApp{
		fs: flag.NewFlagSet("vqmplot", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInFile, "i", "", "Per-frame metrics JSON file (mandatory)")
	app.fs.StringVar(&app.flMetric, "m", "", "Metric name used in plot labels (mandatory)")
	app.fs.StringVar(&app.flOutFile, "o", "", "File to save plot to (defaults to input name with .png)")

	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}
	return app
}

func (a *VQMPlotApp) Name() string {
	return a.fs.Name()
}

func (a *VQMPlotApp) Help() {
	a.fs.Usage()
}

// Run is main entry point into VQMPlotApp execution.
func (a *VQMPlotApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}
	a.gf.Apply()

	if a.flInFile == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}
	if a.flMetric == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -m is missing",
		}
	}

	base := strings.TrimSuffix(path.Base(a.flInFile), path.Ext(a.flInFile))
	if a.flOutFile == "" {
		a.flOutFile = strings.TrimSuffix(a.flInFile, path.Ext(a.flInFile)) + ".png"
	}

	logging.Infof("Output will be written to:\n\t%s\n", a.flOutFile)

	if err := plotFrameMetrics(a.flInFile, a.flOutFile, a.flMetric, base); err != nil {
		return &AppError{
			exitCode: 1,
			msg:      err.Error(),
		}
	}

	return nil
}

func plotFrameMetrics(jsonFile, plotFile, metric, title string) error {
	fd, err := os.Open(jsonFile)
	if err != nil {
		return fmt.Errorf("opening per-frame metrics file: %w", err)
	}
	defer fd.Close()

	var fm vqm.FrameMetrics
	if err := fm.FromJSON(fd); err != nil {
		return fmt.Errorf("failed reading FrameMetrics: %w", err)
	}

	if err := analysis.MultiPlotVqm(fm.Values(), metric, title, plotFile); err != nil {
		return fmt.Errorf("creating %s multiplot: %w", metric, err)
	}
	return nil
}
