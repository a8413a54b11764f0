// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	// Still image decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource is a Source producing exactly one frame from a still image.
type ImageSource struct {
	desc   Descriptor
	frame  Buffer
	format string
	done   bool
}

// NewImageSource decodes the still image at path.
//
// Image is decoded eagerly, so Next() never fails with anything but ErrEndOfStream.
func NewImageSource(path string) (*ImageSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StreamUnavailableError{Path: path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, &StreamUnavailableError{Path: path, Err: fmt.Errorf("decoding image: %w", err)}
	}

	buf := ImageToRGB(img)
	return &ImageSource{
		desc:   Descriptor{Width: buf.Width, Height: buf.Height, FrameCount: 1},
		frame:  buf,
		format: format,
	}, nil
}

// Format returns the name of the image format, e.g. "png".
func (s *ImageSource) Format() string {
	return s.format
}

func (s *ImageSource) Descriptor() Descriptor {
	return s.desc
}

func (s *ImageSource) Next() (Buffer, error) {
	if s.done {
		return Buffer{}, ErrEndOfStream
	}
	s.done = true
	out := s.frame
	// Drop our reference, the caller owns the frame now.
	s.frame = Buffer{}
	return out, nil
}

func (s *ImageSource) Close() error {
	s.done = true
	s.frame = Buffer{}
	return nil
}

// ImageToRGB converts any image.Image into a 3 channel RGB Buffer. Alpha is dropped.
func ImageToRGB(img image.Image) Buffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*3)

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			copy(pix[(y*w+x)*3:(y*w+x)*3+3], row[x*4:x*4+3])
		}
	}

	return Buffer{Width: w, Height: h, Channels: 3, Pix: pix}
}
