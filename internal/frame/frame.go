// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Decoded frame abstractions and sequential frame sources.

package frame

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEndOfStream signals that a Source has no more frames. It is a normal loop
	// termination signal, not a failure.
	ErrEndOfStream = errors.New("end of stream")
	// ErrStreamUnavailable is wrapped by StreamUnavailableError.
	ErrStreamUnavailable = errors.New("stream unavailable")
	// ErrInvalidBuffer is returned when sample storage does not match geometry.
	ErrInvalidBuffer = errors.New("invalid frame buffer")
)

// StreamUnavailableError is returned when a media file cannot be opened or decoded:
// missing file, unsupported codec, corrupt data or missing decoder tooling.
type StreamUnavailableError struct {
	Path string
	Err  error
}

func (e *StreamUnavailableError) Error() string {
	return fmt.Sprintf("could not open %s: %v", e.Path, e.Err)
}

func (e *StreamUnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStreamUnavailable) hold for any StreamUnavailableError.
func (e *StreamUnavailableError) Is(target error) bool {
	return target == ErrStreamUnavailable
}

// Descriptor holds stream geometry, read once when a Source is opened.
type Descriptor struct {
	Width      int
	Height     int
	FrameCount int
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Buffer is a single decoded frame: interleaved 8-bit samples, row-major.
//
// A Buffer is never modified once produced, every method returns new data.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewBuffer wraps pix into a Buffer after checking that its length matches geometry.
func NewBuffer(width, height, channels int, pix []uint8) (Buffer, error) {
	if width < 0 || height < 0 || channels <= 0 {
		return Buffer{}, fmt.Errorf("%w: geometry %dx%dx%d", ErrInvalidBuffer, width, height, channels)
	}
	if want := width * height * channels; len(pix) != want {
		return Buffer{}, fmt.Errorf("%w: %d samples for %dx%dx%d, want %d",
			ErrInvalidBuffer, len(pix), width, height, channels, want)
	}
	return Buffer{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

// SameShape reports whether both buffers have equal width, height and channel count.
func (b Buffer) SameShape(o Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height && b.Channels == o.Channels
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return b.Width * b.Height * b.Channels
}

// Gray converts the frame to a single channel luma buffer.
//
// 3 and 4 channel buffers are treated as RGB(A) and use Rec.601 weights
// Y = 0.299R + 0.587G + 0.114B rounded to 8 bits. A single channel buffer is returned
// as a copy. Any other channel count averages all channels.
func (b Buffer) Gray() Buffer {
	n := b.Width * b.Height
	out := make([]uint8, n)
	switch b.Channels {
	case 1:
		copy(out, b.Pix)
	case 3, 4:
		c := b.Channels
		for i := 0; i < n; i++ {
			p := b.Pix[i*c : i*c+3]
			y := 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
			out[i] = clampUint8(math.Round(y))
		}
	default:
		c := b.Channels
		for i := 0; i < n; i++ {
			var sum int
			for _, v := range b.Pix[i*c : (i+1)*c] {
				sum += int(v)
			}
			out[i] = clampUint8(math.Round(float64(sum) / float64(c)))
		}
	}
	return Buffer{Width: b.Width, Height: b.Height, Channels: 1, Pix: out}
}

func clampUint8(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(v)
}

// Source is a forward-only cursor over the frames of one media file.
type Source interface {
	// Descriptor returns geometry and declared frame count, cached at open time.
	Descriptor() Descriptor
	// Next decodes the next frame in presentation order. Returns ErrEndOfStream once
	// Descriptor().FrameCount frames were produced or the decoder ran dry.
	Next() (Buffer, error)
	// Close releases decoder resources. Safe to call more than once.
	Close() error
}
