// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/evolution-gaming/vqcompare/internal/logging"
)

type globalFlags struct {
	ConfFile string
	Debug    bool
	Quiet    bool
}

func (g *globalFlags) Register(fs *flag.FlagSet) {
	fs.BoolVar(&g.Debug, "debug", false, "Enable debug logging (optional)")
	fs.BoolVar(&g.Quiet, "quiet", false, "Suppress info logging (optional)")
	fs.StringVar(&g.ConfFile, "conf", "", "Application configuration file path (optional)")
}

// Apply sets up logging according to parsed flags.
func (g *globalFlags) Apply() {
	if g.Quiet {
		logging.DisableInfoLogger()
	}
	if g.Debug {
		logging.EnableDebugLogger()
	}
}
