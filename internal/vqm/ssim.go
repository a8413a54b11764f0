// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vqm

import (
	"fmt"
	"math"

	"github.com/evolution-gaming/vqcompare/internal/frame"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultSSIMWindow = 11
	DefaultSSIMSigma  = 1.5
)

// Stabilizing constants for 8-bit dynamic range.
var (
	ssimC1 = math.Pow(0.01*maxSample, 2)
	ssimC2 = math.Pow(0.03*maxSample, 2)
)

// SSIM calculates mean Structural Similarity of luma of two equally shaped frames using
// the default 11x11 Gaussian window with sigma 1.5.
func SSIM(a, b frame.Buffer) (float64, error) {
	return SSIMWithWindow(a, b, DefaultSSIMWindow, DefaultSSIMSigma)
}

// SSIMWithWindow calculates mean SSIM of luma using a window x window Gaussian window.
//
// Statistics are computed over the "valid" region only: every window lies fully inside
// the frame. Frames smaller than the window use the largest odd window that fits.
func SSIMWithWindow(a, b frame.Buffer, window int, sigma float64) (float64, error) {
	if !a.SameShape(b) || len(a.Pix) != len(b.Pix) || len(a.Pix) != a.Len() {
		return 0, ErrShapeMismatch
	}
	if a.Width == 0 || a.Height == 0 {
		return 0, ErrEmptyFrame
	}
	if window < 1 || window%2 == 0 || !(sigma > 0) {
		return 0, fmt.Errorf("%w: window %d, sigma %v", ErrInvalidWindow, window, sigma)
	}

	ga, gb := a.Gray(), b.Gray()
	k := fitWindow(window, a.Width, a.Height)
	kernel := gaussianKernel(k, sigma)

	return meanSSIM(ga.Pix, gb.Pix, a.Width, a.Height, kernel), nil
}

// fitWindow shrinks window to the largest odd size not exceeding either dimension.
func fitWindow(window, width, height int) int {
	limit := width
	if height < limit {
		limit = height
	}
	if window <= limit {
		return window
	}
	if limit%2 == 0 {
		limit--
	}
	return limit
}

// gaussianKernel returns a normalized 1D Gaussian of given odd size. The 2D window is
// its outer product with itself.
func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	r := float64(size / 2)
	for i := range k {
		d := float64(i) - r
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// rowStats holds horizontally filtered moments of one input row.
type rowStats struct {
	a, b, aa, bb, ab []float64
}

func newRowStats(n int) rowStats {
	return rowStats{
		a:  make([]float64, n),
		b:  make([]float64, n),
		aa: make([]float64, n),
		bb: make([]float64, n),
		ab: make([]float64, n),
	}
}

// filter runs the horizontal kernel pass over one row of both signals.
func (r *rowStats) filter(a, b []uint8, kernel []float64) {
	for x := range r.a {
		var sa, sb, saa, sbb, sab float64
		for j, w := range kernel {
			va, vb := float64(a[x+j]), float64(b[x+j])
			sa += w * va
			sb += w * vb
			saa += w * (va * va)
			sbb += w * (vb * vb)
			sab += w * (va * vb)
		}
		r.a[x], r.b[x], r.aa[x], r.bb[x], r.ab[x] = sa, sb, saa, sbb, sab
	}
}

// meanSSIM computes the mean of the SSIM map of two single channel planes.
//
// Separable filtering, horizontal results of the last len(kernel) rows are kept in a ring
// so memory stays proportional to frame width.
func meanSSIM(a, b []uint8, width, height int, kernel []float64) float64 {
	k := len(kernel)
	ow, oh := width-k+1, height-k+1

	ring := make([]rowStats, k)
	for i := range ring {
		ring[i] = newRowStats(ow)
	}

	var sum float64
	for y := 0; y < height; y++ {
		ring[y%k].filter(a[y*width:(y+1)*width], b[y*width:(y+1)*width], kernel)
		if y < k-1 {
			continue
		}

		top := y - k + 1
		for x := 0; x < ow; x++ {
			var mu1, mu2, s11, s22, s12 float64
			for i, w := range kernel {
				r := &ring[(top+i)%k]
				mu1 += w * r.a[x]
				mu2 += w * r.b[x]
				s11 += w * r.aa[x]
				s22 += w * r.bb[x]
				s12 += w * r.ab[x]
			}
			// Conversions round every product and block FMA fusion, this keeps the
			// result bit-identical when reference and test are swapped.
			m11, m22, m12 := float64(mu1*mu1), float64(mu2*mu2), float64(mu1*mu2)
			sigma1 := s11 - m11
			sigma2 := s22 - m22
			sigma12 := s12 - m12

			num := (2*m12 + ssimC1) * (2*sigma12 + ssimC2)
			den := (m11 + m22 + ssimC1) * (sigma1 + sigma2 + ssimC2)
			sum += num / den
		}
	}

	return sum / float64(ow*oh)
}

// SSIMMetric implements Metric for SSIM with configurable Gaussian window.
type SSIMMetric struct {
	Window int
	Sigma  float64
}

// NewSSIMMetric creates SSIMMetric, zero values select the defaults.
func NewSSIMMetric(window int, sigma float64) SSIMMetric {
	if window == 0 {
		window = DefaultSSIMWindow
	}
	if sigma == 0 {
		sigma = DefaultSSIMSigma
	}
	return SSIMMetric{Window: window, Sigma: sigma}
}

func (SSIMMetric) Name() string {
	return SSIMName
}

func (m SSIMMetric) Measure(ref, test frame.Buffer) (float64, error) {
	return SSIMWithWindow(ref, test, m.Window, m.Sigma)
}
