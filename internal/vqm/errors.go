// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vqm

import (
	"errors"
	"fmt"

	"github.com/evolution-gaming/vqcompare/internal/frame"
)

var (
	// ErrDivisionByZero is returned when aggregating an empty sequence of frame scores.
	ErrDivisionByZero = errors.New("division by zero: no frames to aggregate")
	// ErrShapeMismatch is returned by metrics given frames of different shape.
	ErrShapeMismatch = errors.New("frame shapes differ")
	// ErrEmptyFrame is returned by metrics given a frame without samples.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrInvalidWindow is returned for an SSIM window that is not a positive odd size.
	ErrInvalidWindow = errors.New("invalid SSIM window")
	// ErrUnknownMetric is returned by NewMetric for unsupported metric names.
	ErrUnknownMetric = errors.New("unknown metric")
)

// DimensionMismatchError reports reference and test streams of different geometry.
type DimensionMismatchError struct {
	Reference frame.Descriptor
	Test      frame.Descriptor
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: reference %s, test %s", e.Reference, e.Test)
}

// ReadFailureError reports a stream that failed or ran dry before the reference frame
// count was reached.
type ReadFailureError struct {
	// Zero based frame index that could not be read.
	Index int
	// Either "reference" or "test".
	Stream string
	Err    error
}

func (e *ReadFailureError) Error() string {
	return fmt.Sprintf("reading %s frame %d: %v", e.Stream, e.Index, e.Err)
}

func (e *ReadFailureError) Unwrap() error {
	return e.Err
}
