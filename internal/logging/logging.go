// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Poor man's logging. Implements 2-level loggers for Info and Debug. Minimal
// wrap around standard library's "log" package.
//
// Both loggers write to stderr once enabled, stdout is reserved for metric output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	defaultOutput io.Writer = os.Stderr
	debugFlags              = log.Ldate | log.Ltime | log.Lshortfile
	infoFlags               = log.Ldate | log.Ltime
	// Each log-level logger should be explicitly enabled via call to Enable*Logger().
	DebugLogger = log.New(io.Discard, debugPrefix, debugFlags)
	InfoLogger  = log.New(io.Discard, infoPrefix, infoFlags)

	debugEnabled atomic.Bool
)

const (
	debugPrefix = "DEBUG: "
	infoPrefix  = "INFO: "
	calldepth   = 2
)

// EnableInfoLogger helper function to explicitly enable InfoLogger.
func EnableInfoLogger() {
	InfoLogger.SetOutput(defaultOutput)
}

// DisableInfoLogger silences InfoLogger again.
func DisableInfoLogger() {
	InfoLogger.SetOutput(io.Discard)
}

// EnableDebugLogger helper function to explicitly enable DebugLogger.
func EnableDebugLogger() {
	DebugLogger.SetOutput(defaultOutput)
	debugEnabled.Store(true)
}

// DebugEnabled reports whether EnableDebugLogger has been called. Use it to skip
// building expensive debug messages, e.g. per-frame dumps.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

func Info(v ...any) {
	InfoLogger.Output(calldepth, fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	InfoLogger.Output(calldepth, fmt.Sprintf(format, v...))
}

func Debug(v ...any) {
	DebugLogger.Output(calldepth, fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	DebugLogger.Output(calldepth, fmt.Sprintf(format, v...))
}
