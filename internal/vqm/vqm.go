// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Contains implementation of the frame-synchronized metric engine along with full
// reference metrics (PSNR, SSIM) and related data structures.

package vqm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/evolution-gaming/vqcompare/internal/logging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names.
const (
	PSNRName = "psnr"
	SSIMName = "ssim"
)

// Metric is a full reference quality metric of a single frame pair.
//
// Implementations must be pure: they must not retain or mutate given buffers.
type Metric interface {
	Name() string
	Measure(ref, test frame.Buffer) (float64, error)
}

// MetricConfig carries tunables for metrics created by NewMetric.
type MetricConfig struct {
	SSIMWindow int
	SSIMSigma  float64
}

// NewMetric returns Metric implementation for a given metric name.
func NewMetric(name string, cfg MetricConfig) (Metric, error) {
	switch name {
	case PSNRName:
		return PSNRMetric{}, nil
	case SSIMName:
		return NewSSIMMetric(cfg.SSIMWindow, cfg.SSIMSigma), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// MetricNames returns sorted list of supported metric names.
func MetricNames() []string {
	n := []string{PSNRName, SSIMName}
	sort.Strings(n)
	return n
}

// Stats are supplementary statistics over per-frame values.
type Stats struct {
	Mean         float64
	HarmonicMean float64
	Min          float64
	Max          float64
	StDev        float64
	Variance     float64
}

// Summarize calculates Stats of values. Empty input gives zero Stats.
//
// Sample variance needs two values, a single frame has zero spread. Harmonic mean is only
// defined for positive values and is left zero otherwise.
func Summarize(values []float64) Stats {
	var s Stats
	if len(values) == 0 {
		return s
	}

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean = stat.Mean(values, nil)
	if s.Min > 0 {
		s.HarmonicMean = stat.HarmonicMean(values, nil)
	}
	if len(values) > 1 {
		s.Variance = stat.Variance(values, nil)
		s.StDev = stat.StdDev(values, nil)
	}

	return s
}

// Aggregate returns the arithmetic mean of per-frame values.
func Aggregate(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrDivisionByZero
	}
	return floats.Sum(values) / float64(len(values)), nil
}

// Report is the result of one reference/test comparison.
type Report struct {
	Metric    string
	Reference string `json:",omitempty"`
	Test      string `json:",omitempty"`
	Frames    FrameMetrics
	// Score is the aggregate, arithmetic mean of Frames.
	Score float64
	Stats Stats
}

// Option tweaks Compare behaviour.
type Option func(*options)

type options struct {
	progress func(done, total int)
}

// WithProgress registers a callback invoked after each measured frame pair.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Compare measures metric m over all frame pairs of ref and test.
//
// Geometry is validated before any frame is read. The reference frame count drives the
// loop and test must deliver at least as many frames. Sources are not closed here.
func Compare(ref, test frame.Source, m Metric, opts ...Option) (*Report, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if ref == nil {
		return nil, &frame.StreamUnavailableError{Path: "reference", Err: errors.New("no source")}
	}
	if test == nil {
		return nil, &frame.StreamUnavailableError{Path: "test", Err: errors.New("no source")}
	}

	rd, td := ref.Descriptor(), test.Descriptor()
	if rd.Width != td.Width || rd.Height != td.Height {
		return nil, &DimensionMismatchError{Reference: rd, Test: td}
	}
	if td.FrameCount != rd.FrameCount {
		logging.Debugf("Frame count differs: reference %d, test %d", rd.FrameCount, td.FrameCount)
	}

	total := rd.FrameCount
	frames := make(FrameMetrics, 0, total)
	for i := 0; i < total; i++ {
		rf, err := ref.Next()
		if err != nil {
			return nil, &ReadFailureError{Index: i, Stream: "reference", Err: err}
		}
		tf, err := test.Next()
		if err != nil {
			return nil, &ReadFailureError{Index: i, Stream: "test", Err: err}
		}

		v, err := m.Measure(rf, tf)
		if err != nil {
			return nil, fmt.Errorf("Compare() %s of frame %d: %w", m.Name(), i, err)
		}
		frames = append(frames, FrameMetric{FrameNum: uint(i), Value: v})

		if logging.DebugEnabled() {
			logging.Debugf("Frame %d %s: %v", i, m.Name(), v)
		}
		if o.progress != nil {
			o.progress(i+1, total)
		}
	}

	values := frames.Values()
	score, err := Aggregate(values)
	if err != nil {
		return nil, err
	}

	return &Report{
		Metric: m.Name(),
		Frames: frames,
		Score:  score,
		Stats:  Summarize(values),
	}, nil
}

// Opener creates frame sources from file paths.
type Opener interface {
	Open(path string) (frame.Source, error)
}

// CompareFiles opens refPath and testPath and compares them with metric m. Both sources
// are released before return, whatever the outcome.
func CompareFiles(o Opener, refPath, testPath string, m Metric, opts ...Option) (*Report, error) {
	ref, err := o.Open(refPath)
	if err != nil {
		return nil, err
	}
	defer closeSource(ref, refPath)

	test, err := o.Open(testPath)
	if err != nil {
		return nil, err
	}
	defer closeSource(test, testPath)

	r, err := Compare(ref, test, m, opts...)
	if err != nil {
		return nil, err
	}
	r.Reference = refPath
	r.Test = testPath

	return r, nil
}

// closeSource releases s, a failing decoder teardown does not invalidate measured frames.
func closeSource(s frame.Source, path string) {
	if err := s.Close(); err != nil {
		logging.Debugf("Closing %s: %v", path, err)
	}
}
