// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vqm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixBuffer creates a w x h x c frame filled by fill(sample index).
func fixBuffer(t *testing.T, w, h, c int, fill func(i int) uint8) frame.Buffer {
	t.Helper()
	pix := make([]uint8, w*h*c)
	for i := range pix {
		pix[i] = fill(i)
	}
	b, err := frame.NewBuffer(w, h, c, pix)
	require.NoError(t, err)
	return b
}

// fixNoise creates a frame with pseudo-random samples from a fixed seed.
func fixNoise(t *testing.T, w, h, c int, seed int64) frame.Buffer {
	t.Helper()
	r := rand.New(rand.NewSource(seed)) //#nosec G404
	return fixBuffer(t, w, h, c, func(int) uint8 { return uint8(r.Intn(256)) })
}

func constant(v uint8) func(int) uint8 {
	return func(int) uint8 { return v }
}

func TestPSNR(t *testing.T) {
	tests := map[string]struct {
		a, b frame.Buffer
		want float64
	}{
		"Identical frames give zero sentinel": {
			a:    fixBuffer(t, 4, 4, 3, constant(128)),
			b:    fixBuffer(t, 4, 4, 3, constant(128)),
			want: 0,
		},
		"Off by one everywhere": {
			a:    fixBuffer(t, 4, 4, 3, constant(10)),
			b:    fixBuffer(t, 4, 4, 3, constant(11)),
			want: 10 * math.Log10(255*255),
		},
		"Black versus white": {
			a:    fixBuffer(t, 2, 2, 1, constant(0)),
			b:    fixBuffer(t, 2, 2, 1, constant(255)),
			want: 0,
		},
		"Single sample differs": {
			a: fixBuffer(t, 10, 10, 1, constant(0)),
			b: fixBuffer(t, 10, 10, 1, func(i int) uint8 {
				if i == 0 {
					return 10
				}
				return 0
			}),
			// mse = 100 / 100 = 1
			want: 10 * math.Log10(255*255),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := PSNR(tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestPSNR_NoWraparound(t *testing.T) {
	// Unsigned subtraction would wrap 0-255 into 1 and report a near perfect match.
	a := fixBuffer(t, 8, 8, 3, constant(0))
	b := fixBuffer(t, 8, 8, 3, constant(255))
	ab, err := PSNR(a, b)
	require.NoError(t, err)
	ba, err := PSNR(b, a)
	require.NoError(t, err)

	assert.InDelta(t, 0, ab, 1e-12)
	assert.Equal(t, ab, ba)
}

func TestPSNR_Symmetric(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		a := fixNoise(t, 17, 9, 3, seed)
		b := fixNoise(t, 17, 9, 3, seed+100)
		ab, err := PSNR(a, b)
		require.NoError(t, err)
		ba, err := PSNR(b, a)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
		assert.Greater(t, ab, float64(0))
	}
}

func TestPSNR_DoesNotMutate(t *testing.T) {
	a := fixNoise(t, 5, 5, 3, 1)
	b := fixNoise(t, 5, 5, 3, 2)
	wantA := append([]uint8(nil), a.Pix...)
	wantB := append([]uint8(nil), b.Pix...)

	_, err := PSNR(a, b)
	require.NoError(t, err)
	assert.Equal(t, wantA, a.Pix)
	assert.Equal(t, wantB, b.Pix)
}

func TestPSNR_Negative(t *testing.T) {
	tests := map[string]struct {
		a, b    frame.Buffer
		wantErr error
	}{
		"Different width": {
			a:       fixBuffer(t, 4, 4, 3, constant(0)),
			b:       fixBuffer(t, 5, 4, 3, constant(0)),
			wantErr: ErrShapeMismatch,
		},
		"Different channels": {
			a:       fixBuffer(t, 4, 4, 3, constant(0)),
			b:       fixBuffer(t, 4, 4, 1, constant(0)),
			wantErr: ErrShapeMismatch,
		},
		"Pix not matching geometry": {
			a:       frame.Buffer{Width: 2, Height: 2, Channels: 1, Pix: []uint8{1, 2, 3}},
			b:       frame.Buffer{Width: 2, Height: 2, Channels: 1, Pix: []uint8{1, 2, 3}},
			wantErr: ErrShapeMismatch,
		},
		"Empty frames": {
			a:       frame.Buffer{Channels: 3},
			b:       frame.Buffer{Channels: 3},
			wantErr: ErrEmptyFrame,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := PSNR(tc.a, tc.b)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPSNRMetric(t *testing.T) {
	var m Metric = PSNRMetric{}
	assert.Equal(t, "psnr", m.Name())

	a := fixNoise(t, 6, 6, 3, 7)
	b := fixNoise(t, 6, 6, 3, 8)
	want, err := PSNR(a, b)
	require.NoError(t, err)
	got, err := m.Measure(a, b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
