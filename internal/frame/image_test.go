// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixPNG writes a w x h PNG with a deterministic gradient and returns its path.
func fixPNG(t *testing.T, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	p := path.Join(t.TempDir(), name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func TestImageSource(t *testing.T) {
	p := fixPNG(t, "still.png", 5, 3)

	src, err := NewImageSource(p)
	require.NoError(t, err)
	defer src.Close()

	t.Run("Descriptor has single frame", func(t *testing.T) {
		assert.Equal(t, Descriptor{Width: 5, Height: 3, FrameCount: 1}, src.Descriptor())
		assert.Equal(t, "png", src.Format())
	})

	t.Run("First Next() yields RGB frame", func(t *testing.T) {
		b, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, 3, b.Channels)
		assert.Equal(t, 5*3*3, len(b.Pix))
		// Pixel (x=4, y=2).
		i := (2*5 + 4) * 3
		assert.Equal(t, []uint8{4, 2, 6}, b.Pix[i:i+3])
	})

	t.Run("Second Next() is end of stream", func(t *testing.T) {
		_, err := src.Next()
		assert.ErrorIs(t, err, ErrEndOfStream)
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		assert.NoError(t, src.Close())
		assert.NoError(t, src.Close())
	})
}

func TestImageSource_Gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.Pix = []uint8{0, 50, 100, 200}
	p := path.Join(t.TempDir(), "gray.jpg")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
	f.Close()

	src, err := NewImageSource(p)
	require.NoError(t, err)
	b, err := src.Next()
	require.NoError(t, err)
	// Gray images are expanded to 3 equal channels.
	assert.Equal(t, 3, b.Channels)
	for i := 0; i < 4; i++ {
		px := b.Pix[i*3 : i*3+3]
		assert.Equal(t, px[0], px[1])
		assert.Equal(t, px[1], px[2])
	}
}

func TestImageSource_Negative(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := NewImageSource(path.Join(t.TempDir(), "missing.png"))
		assert.ErrorIs(t, err, ErrStreamUnavailable)
	})
	t.Run("Corrupt file", func(t *testing.T) {
		p := path.Join(t.TempDir(), "corrupt.png")
		require.NoError(t, os.WriteFile(p, []byte("definitely not a png"), 0o644))
		_, err := NewImageSource(p)
		assert.ErrorIs(t, err, ErrStreamUnavailable)
		assert.ErrorContains(t, err, "decoding image")
	})
}

func TestImageToRGB_SubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{R: 9, G: 8, B: 7, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	b := ImageToRGB(sub)
	assert.Equal(t, 2, b.Width)
	assert.Equal(t, 2, b.Height)
	assert.Equal(t, []uint8{9, 8, 7}, b.Pix[:3])
}
