// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// vqcompare tool's new-plan subcommand implementation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/batch"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
)

// inputFiles implements flag.Value interface.
type inputFiles []string

func (i *inputFiles) String() string {
	return strings.Join(*i, ", ")
}

func (i *inputFiles) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func CreateNewPlanCommand() *NewPlanApp {
	longHelp := `Subcommand "new-plan" helps create a new comparison plan file template. Every
test file is paired with the reference file.

Examples:

  vqcompare new-plan -r source.mp4 -t crf23.mp4 -t crf30.mp4 -o plan.json
  vqcompare new-plan -r source.png -t test.png -m ssim`

	app := &NewPlanApp{
		fs:  flag.NewFlagSet("new-plan", flag.ContinueOnError),
		out: os.Stdout,
	}
	app.fs.StringVar(&app.flOutFile, "o", "", "Output file (stdout by default).")
	app.fs.StringVar(&app.flReference, "r", "", "Reference file.")
	app.fs.Var(&app.flTestFiles, "t", "Test files. Use multiple times for multiple files.")
	app.fs.Var(&app.flMetrics, "m", "Metrics to compute. Use multiple times, all metrics by default.")

	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

type NewPlanApp struct {
	// FlagSet instance
	fs *flag.FlagSet
	// Output file to save plan to
	flOutFile string
	// Reference file
	flReference string
	// Test files
	flTestFiles inputFiles
	// Metric names
	flMetrics inputFiles
	// Default output
	out io.Writer
}

func (a *NewPlanApp) Name() string {
	return a.fs.Name()
}

func (a *NewPlanApp) Help() {
	a.fs.Usage()
}

func (a *NewPlanApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			msg:      "usage error",
			exitCode: 2,
		}
	}

	// In case no files provided we will use some placeholder strings.
	if a.flReference == "" {
		a.flReference = "path/to/reference/video.mp4"
	}
	if len(a.flTestFiles) == 0 {
		a.flTestFiles = []string{"path/to/test/video.mp4"}
	}
	if len(a.flMetrics) == 0 {
		a.flMetrics = vqm.MetricNames()
	}
	for _, m := range a.flMetrics {
		if _, err := vqm.NewMetric(m, vqm.MetricConfig{}); err != nil {
			return &AppError{msg: err.Error(), exitCode: 2}
		}
	}

	pc := batch.PlanConfig{Metrics: a.flMetrics}
	for _, t := range a.flTestFiles {
		pc.Pairs = append(pc.Pairs, batch.Pair{
			Name:      batch.Pair{Test: t}.EffectiveName(),
			Reference: a.flReference,
			Test:      t,
		})
	}

	out := a.out
	if a.flOutFile != "" {
		fd, err := os.Create(a.flOutFile)
		if err != nil {
			return &AppError{
				msg:      fmt.Sprintf("output file error: %s", err),
				exitCode: 1,
			}
		}
		defer fd.Close()
		out = fd
	}

	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	if err := e.Encode(pc); err != nil {
		return &AppError{
			msg:      "JSON marshal error",
			exitCode: 1,
		}
	}

	return nil
}
