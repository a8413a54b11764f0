// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Main entrypoint for vqcompare application

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/fatih/color"
)

const usage = `vqcompare - Video Quality Comparison

Usage:

    vqcompare <command> [arguments] [-h|-help]

The commands are:

    psnr        average PSNR between reference and test file
    ssim        average SSIM between reference and test file
    batch       run comparisons according to "comparison plan"
    new-plan    create a comparison plan template
    vqmplot     create plot from per-frame metrics JSON
    dump-conf   output actual application configuration
    version     print vqcompare version and exit

Use "vqcompare <command> -h|-help" for more information about command.`

// root represents top level of vqcompare command, including dispatching to subcommands.
func root(args []string) error {
	if len(args) < 1 {
		fmt.Println(usage)
		return &AppError{msg: "please, specify command", exitCode: 2}
	}

	switch args[0] {
	case "psnr":
		return CreatePSNRCommand().Run(args[1:])
	case "ssim":
		return CreateSSIMCommand().Run(args[1:])
	case "batch":
		return CreateBatchCommand().Run(args[1:])
	case "new-plan":
		return CreateNewPlanCommand().Run(args[1:])
	case "vqmplot":
		return CreateVQMPlotCommand().Run(args[1:])
	case "dump-conf", "dump":
		return CreateDumpConfCommand().Run(args[1:])
	case "version":
		printVersion()
		return nil
	case "-h", "-help", "--help", "?":
		fmt.Println(usage)
		return &AppError{
			exitCode: 2,
		}
	default:
		// No commands were matched at this point, so bail out with default usage message.
		fmt.Println(usage)
		return &AppError{
			msg:      "unknown command/flag",
			exitCode: 2,
		}
	}
}

// printError writes a single line diagnostic, "Error:" prefix is colored on terminals.
func printError(w io.Writer, err error) {
	if err.Error() == "" {
		return
	}
	prefix := color.New(color.FgRed, color.Bold).Sprint("Error:")
	fmt.Fprintf(w, "%s %v\n", prefix, err)
}

// exitCode picks process exit code for err.
func exitCode(err error) int {
	var e *AppError
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}

func main() {
	// Enable info logger by default and early enough.
	logging.EnableInfoLogger()
	color.NoColor = color.NoColor || !isTerminal(os.Stderr)

	if err := root(os.Args[1:]); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
	os.Exit(0)
}
