// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package batch

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
)

// Comparison is a single metric computation over one pair.
type Comparison struct {
	// Name of the pair
	Name      string
	Metric    string
	Reference string
	Test      string
	// FramesFile receives per-frame metrics as JSON
	FramesFile string
}

// Run opens both files of this comparison and measures metric m.
func (c *Comparison) Run(o vqm.Opener, m vqm.Metric, opts ...vqm.Option) RunResult {
	r := RunResult{Comparison: *c}

	start := time.Now()
	report, err := vqm.CompareFiles(o, c.Reference, c.Test, m, opts...)
	r.Elapsed = time.Since(start)
	if err != nil {
		logging.Infof("Comparison error for %s (%s): %s", c.Name, c.Metric, err)
		r.AddError(err)
		return r
	}
	r.Report = report

	f, err := os.Create(c.FramesFile)
	if err != nil {
		r.AddError(err)
		return r
	}
	defer f.Close()
	if err := report.Frames.ToJSON(f); err != nil {
		r.AddError(err)
	}

	return r
}

type Plan struct {
	// Embed PlanConfig struct
	PlanConfig
	Comparisons []Comparison
	// Output directory
	OutDir string
	// Opener creates frame sources, each comparison gets its own.
	Opener       vqm.Opener
	MetricConfig vqm.MetricConfig
	// Flag to signal if output dir has been created
	outDirCreated bool
}

// NewPlan will create Plan instance from given PlanConfig, expanding it into pairs x
// metrics comparisons.
func NewPlan(pc PlanConfig, outDir string, o vqm.Opener, mc vqm.MetricConfig) Plan {
	p := Plan{
		PlanConfig:   pc,
		OutDir:       outDir,
		Opener:       o,
		MetricConfig: mc,
	}
	for _, pair := range p.Pairs {
		name := pair.EffectiveName()
		for _, m := range p.Metrics {
			base := generateOutputFileNameBase(name, outDir, m)
			p.Comparisons = append(p.Comparisons, Comparison{
				Name:       name,
				Metric:     m,
				Reference:  pair.Reference,
				Test:       pair.Test,
				FramesFile: base + ".json",
			})
		}
	}
	return p
}

// Run executes comparisons of this Plan using at most workers goroutines.
//
// Results are in plan order regardless of completion order. Error is nil if all
// comparisons succeed.
func (s *Plan) Run(workers int) (PlanResult, error) {
	var runError error
	result := PlanResult{
		StartTime:  time.Now(),
		RunResults: make([]RunResult, len(s.Comparisons)),
	}

	if err := s.ensureOutDir(); err != nil {
		return result, err
	}
	if workers < 1 {
		workers = 1
	}

	// Resolve metrics upfront so misconfiguration fails before any decoding.
	metrics := make(map[string]vqm.Metric, len(s.Metrics))
	for _, name := range s.Metrics {
		m, err := vqm.NewMetric(name, s.MetricConfig)
		if err != nil {
			return result, fmt.Errorf("Plan.Run(): %w", err)
		}
		metrics[name] = m
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range s.Comparisons {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			c := &s.Comparisons[i]
			logging.Infof("Start %s %s vs %s", c.Metric, c.Reference, c.Test)
			result.RunResults[i] = c.Run(s.Opener, metrics[c.Metric])
			logging.Infof("Done %s %s vs %s in %s", c.Metric, c.Reference, c.Test, result.RunResults[i].Elapsed)
		}(i)
	}
	wg.Wait()
	result.EndTime = time.Now()

	for i := range result.RunResults {
		if len(result.RunResults[i].Errors) != 0 {
			runError = errors.New("Plan run executed with errors")
		}
	}
	return result, runError
}

// ensureOutDir will create output directory if it does not exist.
func (p *Plan) ensureOutDir() error {
	if p.outDirCreated {
		return nil
	}
	logging.Debugf("Creating output directory: %s", p.OutDir)
	err := os.MkdirAll(p.OutDir, os.FileMode(0o775))
	if err != nil {
		return fmt.Errorf("ensureOutDir(): %w", err)
	}
	p.outDirCreated = true
	return nil
}

// PlanResult holds Plan execution result state.
type PlanResult struct {
	StartTime  time.Time
	EndTime    time.Time
	RunResults []RunResult
}

// RunResult contains a status of a single comparison.
type RunResult struct {
	Comparison
	Report  *vqm.Report
	Elapsed time.Duration
	Errors  []error
}

func (s *RunResult) AddError(e error) {
	s.Errors = append(s.Errors, e)
}

// OK reports a comparison that produced a report without errors.
func (s *RunResult) OK() bool {
	return s.Report != nil && len(s.Errors) == 0
}

// outputName maps pair name to the file name stem of its output files.
func outputName(name string) string {
	// Normalize filename strings to sane format (no spaces).
	return strings.ReplaceAll(path.Base(filepath.ToSlash(name)), " ", "_")
}

// generateOutputFileNameBase will generate a sensible output filename without extension.
func generateOutputFileNameBase(name, outDir, postfix string) string {
	return path.Join(outDir, fmt.Sprintf("%s_%s", outputName(name), strings.ReplaceAll(postfix, " ", "_")))
}
