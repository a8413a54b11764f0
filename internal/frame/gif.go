// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"os"
)

// GifSource is a Source over every frame of a (possibly animated) GIF.
//
// Frames are composited onto the logical screen honoring each frame's disposal method,
// so every Buffer is a full picture rather than a raw sub-image.
type GifSource struct {
	desc   Descriptor
	g      *gif.GIF
	canvas *image.RGBA
	// Canvas snapshot restored by DisposalPrevious.
	prev *image.RGBA
	next int
	done bool
}

// NewGifSource decodes all frames of the GIF at path.
func NewGifSource(path string) (*GifSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StreamUnavailableError{Path: path, Err: err}
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, &StreamUnavailableError{Path: path, Err: fmt.Errorf("decoding gif: %w", err)}
	}
	if len(g.Image) == 0 {
		return nil, &StreamUnavailableError{Path: path, Err: errors.New("gif has no frames")}
	}

	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	return &GifSource{
		desc:   Descriptor{Width: w, Height: h, FrameCount: len(g.Image)},
		g:      g,
		canvas: image.NewRGBA(image.Rect(0, 0, w, h)),
	}, nil
}

func (s *GifSource) Descriptor() Descriptor {
	return s.desc
}

func (s *GifSource) Next() (Buffer, error) {
	if s.done || s.next >= len(s.g.Image) {
		return Buffer{}, ErrEndOfStream
	}
	i := s.next
	s.next++

	if i > 0 {
		s.dispose(i - 1)
	}
	if s.disposal(i) == gif.DisposalPrevious {
		s.prev = image.NewRGBA(s.canvas.Rect)
		copy(s.prev.Pix, s.canvas.Pix)
	}
	img := s.g.Image[i]
	draw.Draw(s.canvas, img.Bounds(), img, img.Bounds().Min, draw.Over)

	return ImageToRGB(s.canvas), nil
}

func (s *GifSource) Close() error {
	s.done = true
	s.g = nil
	s.canvas, s.prev = nil, nil
	return nil
}

func (s *GifSource) disposal(i int) byte {
	if i < len(s.g.Disposal) {
		return s.g.Disposal[i]
	}
	return gif.DisposalNone
}

// dispose applies disposal method of frame i before the next one is drawn.
func (s *GifSource) dispose(i int) {
	switch s.disposal(i) {
	case gif.DisposalBackground:
		draw.Draw(s.canvas, s.g.Image[i].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if s.prev != nil {
			copy(s.canvas.Pix, s.prev.Pix)
		}
	}
}
