// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// vqcompare tool's batch subcommand implementation.

package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/analysis"
	"github.com/evolution-gaming/vqcompare/internal/batch"
	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/metric"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
	"github.com/jszwec/csvutil"
)

// Make sure BatchApp implements Commander interface.
var _ Commander = (*BatchApp)(nil)

// CreateBatchCommand will create instance of BatchApp.
func CreateBatchCommand() *BatchApp {
	longHelp := `Subcommand "batch" will execute comparison plan according to definition in file
provided as parameter to -plan flag. Every pair is compared with every metric listed
in plan, results are written to per-comparison JSON and PNG files plus a CSV report.

Example plan:

  {
    "Pairs": [
      {"Name": "crf23", "Reference": "src.mp4", "Test": "crf23.mp4"}
    ],
    "Metrics": ["psnr", "ssim"]
  }

Examples:

  vqcompare batch -plan plan.json -out-dir path/to/output/dir
  vqcompare batch -plan plan.json -out-dir results -workers 2`

	app := &BatchApp{
		fs:     flag.NewFlagSet("batch", flag.ContinueOnError),
		gf:     globalFlags{},
		mStore: metric.NewStore(),
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flPlan, "plan", "", "Comparison plan configuration file")
	app.fs.StringVar(&app.flOutDir, "out-dir", "", "Output directory to store results")
	app.fs.BoolVar(&app.flDryRun, "dry-run", false, "Do not actually run, just do checks and validation")
	app.fs.IntVar(&app.flWorkers, "workers", 0, "Number of concurrent comparisons, overrides configuration (optional)")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// BatchApp is subcommand application context that implements Commander interface.
type BatchApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Comparison plan file
	flPlan string
	// Output directory for results
	flOutDir string
	// Global flags
	gf globalFlags
	// Dry run mode flag
	flDryRun bool
	// Worker count override
	flWorkers int
	// Comparison metric store
	mStore *metric.Store
}

func (a *BatchApp) Name() string {
	return a.fs.Name()
}

func (a *BatchApp) Help() {
	a.fs.Usage()
}

// init will do App state initialization.
func (a *BatchApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.fs.Name()),
		}
	}
	a.gf.Apply()

	// Plan config file is mandatory.
	if a.flPlan == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -plan is missing",
		}
	}

	// Output dir is mandatory.
	if a.flOutDir == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -out-dir is missing",
		}
	}

	// Plan config file should exist.
	if _, err := os.Stat(a.flPlan); err != nil {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("comparison plan file does not exist? %s", err),
		}
	}

	// Do not write over existing output directory.
	if isNonEmptyDir(a.flOutDir) {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("non-empty out dir: %s", a.flOutDir)}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	if a.flWorkers > 0 {
		c.Workers = NewConfigVal(a.flWorkers)
	}
	a.cfg = &c

	return nil
}

// compare will run comparison stage of plan execution and store results.
func (a *BatchApp) compare(plan batch.Plan) error {
	result, err := plan.Run(a.cfg.Workers.Value())
	// Plan failed before running any comparison.
	if err != nil && result.EndTime.IsZero() {
		return fmt.Errorf("plan run: %w", err)
	}
	// Make sure to log any errors from RunResults.
	if ur := unrollResultErrors(result.RunResults); ur != "" {
		logging.Infof("Run had following ERRORS:\n%s", ur)
	}

	// Store comparison metrics into mStore, failed comparisons too.
	for i := range result.RunResults {
		id := a.mStore.Insert(newRecord(&result.RunResults[i]))
		logging.Debugf("Storing record (id=%v) with comparison metrics", id)
	}
	logging.Infof("Plan executed in %s", result.EndTime.Sub(result.StartTime))

	if err != nil {
		return fmt.Errorf("plan run: %w", err)
	}
	return nil
}

// newRecord converts comparison result to metric store Record.
func newRecord(r *batch.RunResult) metric.Record {
	rec := metric.Record{
		Name:          r.Name,
		Metric:        r.Metric,
		ReferenceFile: r.Reference,
		TestFile:      r.Test,
		HElapsed:      r.Elapsed.String(),
		Elapsed:       r.Elapsed,
	}
	if r.Report != nil {
		rec.FrameCount = len(r.Report.Frames)
		rec.Score = r.Report.Score
		rec.Min = r.Report.Stats.Min
		rec.Max = r.Report.Stats.Max
		rec.Mean = r.Report.Stats.Mean
		rec.HarmonicMean = r.Report.Stats.HarmonicMean
		rec.StDev = r.Report.Stats.StDev
		rec.Variance = r.Report.Stats.Variance
	}
	if r.OK() {
		rec.FramesFile = r.FramesFile
	}
	if len(r.Errors) != 0 {
		msgs := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			msgs = append(msgs, e.Error())
		}
		rec.Error = strings.Join(msgs, "; ")
	}
	return rec
}

// analyse will create per-frame plots for successful comparisons.
func (a *BatchApp) analyse() error {
	var failed bool
	for _, id := range a.mStore.GetIDs() {
		v, err := a.mStore.Get(id)
		if err != nil {
			return fmt.Errorf("fetching record by id (%v): %w", id, err)
		}
		if v.FramesFile == "" {
			logging.Debugf("Skip plot for %s (%s), no per-frame metrics", v.Name, v.Metric)
			continue
		}

		jsonFd, err := os.Open(v.FramesFile)
		if err != nil {
			return fmt.Errorf("opening per-frame metrics file: %w", err)
		}
		var frameMetrics vqm.FrameMetrics
		err = frameMetrics.FromJSON(jsonFd)
		// Close jsonFd file descriptor at earliest convenience. Should avoid use of defer
		// in loop in this case.
		jsonFd.Close()
		if err != nil {
			return fmt.Errorf("failed reading FrameMetrics: %w", err)
		}

		plotFile := strings.TrimSuffix(v.FramesFile, path.Ext(v.FramesFile)) + ".png"
		title := fmt.Sprintf("%s vs %s", path.Base(v.TestFile), path.Base(v.ReferenceFile))
		label := strings.ToUpper(v.Metric)
		if err := analysis.MultiPlotVqm(frameMetrics.Values(), label, title, plotFile); err != nil {
			failed = true
			logging.Infof("Failed creating %s multi-plot for %s: %s", label, v.Name, err)
			continue
		}
		logging.Infof("%s multi-plot done: %s", label, plotFile)

		v.PlotFile = plotFile
		if err := a.mStore.Update(id, v); err != nil {
			return fmt.Errorf("updating record (id=%v): %w", id, err)
		}
	}

	if failed {
		return errors.New("plotting had errors, see log for reasons")
	}
	return nil
}

// saveReport writes recorded metrics to report file.
func (a *BatchApp) saveReport() error {
	report := a.mStore.Records()

	reportPath := path.Join(a.flOutDir, a.cfg.ReportFileName.Value())
	reportOut, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("creating CSV report file: %w", err)
	}
	defer reportOut.Close()

	w := csv.NewWriter(reportOut)
	if err := csvutil.NewEncoder(w).Encode(report); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing CSV report: %w", err)
	}
	logging.Infof("Report written to %s", reportPath)

	return nil
}

// Run is main entry point into BatchApp execution.
func (a *BatchApp) Run(args []string) error {
	logging.Infof("vqcompare version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	logging.Debugf("Comparison plan config file: %v", a.flPlan)

	pc, err := createPlanConfig(a.flPlan)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// To avoid ambiguity, resolve output path to absolute representation.
	outDirPath, err := filepath.Abs(a.flOutDir)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.flOutDir = outDirPath

	ffCfg, err := a.cfg.FfmpegConfig()
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	plan := batch.NewPlan(pc, outDirPath, frame.NewOpener(ffCfg), a.cfg.MetricConfig())

	// Early return in "dry run" mode.
	if a.flDryRun {
		for _, c := range plan.Comparisons {
			logging.Infof("Would compare %s: %s vs %s -> %s", c.Metric, c.Reference, c.Test, c.FramesFile)
		}
		logging.Info("Dry run mode finished!")
		return nil
	}

	// Comparison failures still produce a report, so defer returning runErr.
	runErr := a.compare(plan)

	// Run analysis stage.
	if err = a.analyse(); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// Save report.
	if err = a.saveReport(); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if runErr != nil {
		return &AppError{exitCode: 1, msg: runErr.Error()}
	}

	logging.Info("Done")
	return nil
}
