// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vqm

import (
	"math"

	"github.com/evolution-gaming/vqcompare/internal/frame"
)

const (
	// Peak sample value for 8-bit frames.
	maxSample = 255.0
	// Sum of squared errors at or below this value counts as "no difference".
	zeroErrorThreshold = 1e-10
)

// PSNR calculates Peak Signal-to-Noise Ratio in dB between two equally shaped frames,
// over all samples of all channels.
//
// Frames without measurable difference yield 0.0 rather than +Inf. Callers comparing
// scores must treat 0.0 as "identical", it is not a very bad score.
func PSNR(a, b frame.Buffer) (float64, error) {
	if !a.SameShape(b) || len(a.Pix) != len(b.Pix) || len(a.Pix) != a.Len() {
		return 0, ErrShapeMismatch
	}
	if len(a.Pix) == 0 {
		return 0, ErrEmptyFrame
	}

	// Integer accumulation is exact and can not wrap: 255² * n fits easily in 64 bits.
	var sse uint64
	for i, v := range a.Pix {
		d := int64(v) - int64(b.Pix[i])
		sse += uint64(d * d)
	}

	if float64(sse) <= zeroErrorThreshold {
		return 0, nil
	}

	mse := float64(sse) / float64(len(a.Pix))
	return 10 * math.Log10((maxSample*maxSample)/mse), nil
}

// PSNRMetric implements Metric for PSNR.
type PSNRMetric struct{}

func (PSNRMetric) Name() string {
	return PSNRName
}

func (PSNRMetric) Measure(ref, test frame.Buffer) (float64, error) {
	return PSNR(ref, test)
}
