// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// A naìve truncating Writer implementation.
//
// Similar to io.LimitedReader, except that writes past the limit are dropped instead of
// failing: a child process writing diagnostics must never block or fail because we
// stopped collecting them.
package lw

import (
	"io"
)

type TruncatingWriter struct {
	// Apply limits to this Writer
	W io.Writer
	// Bytes left before output gets dropped
	N uint
	// Count of dropped bytes
	Dropped uint
}

// Write implements io.Writer for *TruncatingWriter.
//
// It always reports len(b) bytes written unless underlying Writer fails.
func (s *TruncatingWriter) Write(b []byte) (int, error) {
	total := len(b)
	if uint(len(b)) > s.N {
		s.Dropped += uint(len(b)) - s.N
		b = b[:s.N]
	}
	if len(b) == 0 {
		return total, nil
	}
	n, err := s.W.Write(b)
	s.N -= uint(n)
	if err != nil {
		return n, err
	}
	return total, nil
}

// Truncated reports if any output has been dropped.
func (s *TruncatingWriter) Truncated() bool {
	return s.Dropped > 0
}

func TruncateWriter(w io.Writer, n uint) io.Writer {
	return &TruncatingWriter{W: w, N: n}
}
