// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Terminal progress reporting for per-frame comparisons.

package main

import (
	"os"

	"github.com/evolution-gaming/vqcompare/internal/vqm"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// frameProgress draws a per-frame progress bar on a terminal. Bar is created lazily since
// frame count is only known once the comparison starts.
type frameProgress struct {
	out         *os.File
	description string
	bar         *progressbar.ProgressBar
}

// newFrameProgress returns nil when out is not a terminal, nil *frameProgress is a no-op.
func newFrameProgress(out *os.File, description string) *frameProgress {
	if out == nil || !isTerminal(out) {
		return nil
	}
	return &frameProgress{out: out, description: description}
}

// Options returns vqm options wiring this progress into a comparison.
func (p *frameProgress) Options() []vqm.Option {
	if p == nil {
		return nil
	}
	return []vqm.Option{vqm.WithProgress(p.update)}
}

func (p *frameProgress) update(done, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.bar.Set(done)
}

// Finish clears the bar, safe to call when nothing was drawn.
func (p *frameProgress) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
