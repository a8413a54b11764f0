// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application configuration structures.

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/tools"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	defaultReportFile = "report.csv"
)

// Config represent application configuration.
type Config struct {
	FfmpegPath  ConfigVal[string] `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
	FfprobePath ConfigVal[string] `json:"ffprobe_path,omitempty" yaml:"ffprobe_path,omitempty"`
	// Extra ffmpeg decoder options as a single shell-like string, e.g. "-hwaccel auto".
	DecodeArgs     ConfigVal[string]  `json:"decode_args,omitempty" yaml:"decode_args,omitempty"`
	SSIMWindow     ConfigVal[int]     `json:"ssim_window,omitempty" yaml:"ssim_window,omitempty"`
	SSIMSigma      ConfigVal[float64] `json:"ssim_sigma,omitempty" yaml:"ssim_sigma,omitempty"`
	Workers        ConfigVal[int]     `json:"workers,omitempty" yaml:"workers,omitempty"`
	ReportFileName ConfigVal[string]  `json:"report_file_name,omitempty" yaml:"report_file_name,omitempty"`
}

// Verify will check that configuration is valid.
//
// Will check that configuration option values are sensible. Empty tool paths are
// allowed since still images are decoded without ffmpeg.
func (c *Config) Verify() error {
	msgs := []string{}
	if p := c.FfmpegPath.Value(); p != "" && !fileExists(p) {
		msgs = append(msgs, "invalid ffmpeg path")
	}
	if p := c.FfprobePath.Value(); p != "" && !fileExists(p) {
		msgs = append(msgs, "invalid ffprobe path")
	}
	if _, err := shlex.Split(c.DecodeArgs.Value()); err != nil {
		msgs = append(msgs, fmt.Sprintf("invalid decode args: %s", err))
	}
	if w := c.SSIMWindow.Value(); w < 1 || w%2 == 0 {
		msgs = append(msgs, "SSIM window must be a positive odd number")
	}
	if c.SSIMSigma.Value() <= 0 {
		msgs = append(msgs, "SSIM sigma must be positive")
	}
	if c.Workers.Value() < 1 {
		msgs = append(msgs, "workers must be at least 1")
	}
	// Report file should not be empty.
	if c.ReportFileName.Value() == "" {
		msgs = append(msgs, "empty report file name")
	}

	if len(msgs) != 0 {
		return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), ErrInvalidConfig)
	}
	return nil
}

// OverrideFrom will overwrite fields from given Config object.
//
// Only fields that are "not-nil" (as per IsNil() method) in src Config object will be
// overwritten.
func (c *Config) OverrideFrom(src Config) {
	if !src.FfmpegPath.IsNil() {
		c.FfmpegPath = src.FfmpegPath
	}
	if !src.FfprobePath.IsNil() {
		c.FfprobePath = src.FfprobePath
	}
	if !src.DecodeArgs.IsNil() {
		c.DecodeArgs = src.DecodeArgs
	}
	if !src.SSIMWindow.IsNil() {
		c.SSIMWindow = src.SSIMWindow
	}
	if !src.SSIMSigma.IsNil() {
		c.SSIMSigma = src.SSIMSigma
	}
	if !src.Workers.IsNil() {
		c.Workers = src.Workers
	}
	if !src.ReportFileName.IsNil() {
		c.ReportFileName = src.ReportFileName
	}
}

// FfmpegConfig returns video decoding configuration derived from Config.
func (c *Config) FfmpegConfig() (frame.FfmpegConfig, error) {
	args, err := shlex.Split(c.DecodeArgs.Value())
	if err != nil {
		return frame.FfmpegConfig{}, fmt.Errorf("FfmpegConfig() decode args: %w", err)
	}
	return frame.FfmpegConfig{
		FfmpegPath:  c.FfmpegPath.Value(),
		FfprobePath: c.FfprobePath.Value(),
		DecodeArgs:  args,
	}, nil
}

// MetricConfig returns metric tunables derived from Config.
func (c *Config) MetricConfig() vqm.MetricConfig {
	return vqm.MetricConfig{
		SSIMWindow: c.SSIMWindow.Value(),
		SSIMSigma:  c.SSIMSigma.Value(),
	}
}

// loadDefaultConfig will create a default configuration.
//
// For some configuration options a default value will be specified, for others an
// auto-detection mechanism will populate option values. Missing ffmpeg tools are not
// an error, video inputs will fail to open later instead.
func loadDefaultConfig() (Config, error) {
	ffmpeg, err := tools.FfmpegPath()
	if err != nil {
		logging.Debugf("DefaultConfig: %s", err)
	}
	ffprobe, err := tools.FfprobePath()
	if err != nil {
		logging.Debugf("DefaultConfig: %s", err)
	}

	cfg := Config{
		FfmpegPath:     NewConfigVal(ffmpeg),
		FfprobePath:    NewConfigVal(ffprobe),
		DecodeArgs:     NewConfigVal(""),
		SSIMWindow:     NewConfigVal(vqm.DefaultSSIMWindow),
		SSIMSigma:      NewConfigVal(vqm.DefaultSSIMSigma),
		Workers:        NewConfigVal(runtime.NumCPU()),
		ReportFileName: NewConfigVal(defaultReportFile),
	}

	return cfg, nil
}

// loadConfigFromFile will load configuration from file, format is chosen by file
// extension.
func loadConfigFromFile(f string) (cfg Config, err error) {
	fileExt := strings.ToLower(filepath.Ext(f))
	switch fileExt {
	case ".json":
		return loadJSON(f)
	case ".yaml", ".yml":
		return loadYAML(f)
	default:
		return cfg, fmt.Errorf("unknown config format: %s", fileExt)
	}
}

// LoadConfig will return merged default config and config from file. This is main
// function to use for config loading. Configuration file is optional e.g. can be "".
func LoadConfig(configFile string) (cfg Config, err error) {
	// Initialize default configuration.
	cfg, err = loadDefaultConfig()
	if err != nil {
		return cfg, err
	}

	// Load configuration from file and override default configuration options.
	if configFile != "" {
		c, err := loadConfigFromFile(configFile)
		if err != nil {
			return cfg, err
		}
		// Configuration file can specify full set or partial set of configuration
		// options. So we only want to override those options that have been specified in
		// config file, rest will remain as per default config.
		cfg.OverrideFrom(c)
	}

	return cfg, nil
}

func loadJSON(f string) (cfg Config, err error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return cfg, fmt.Errorf("config from JSON file: %w", err)
	}

	if len(b) == 0 {
		return cfg, fmt.Errorf("JSON file is empty: %w", ErrInvalidConfig)
	}

	if err = json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config from JSON document: %w", err)
	}

	return cfg, nil
}

func loadYAML(f string) (cfg Config, err error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return cfg, fmt.Errorf("config from YAML file: %w", err)
	}

	if len(strings.TrimSpace(string(b))) == 0 {
		return cfg, fmt.Errorf("YAML file is empty: %w", ErrInvalidConfig)
	}

	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config from YAML document: %w", err)
	}

	return cfg, nil
}

// In order to support Config overriding we have to implement wrapper type for Config
// fields. Otherwise it is hard to distinguish skipped fields, for instance when loading
// partial configuration from file: in that case it would be impossible to  distinguish
// between say string fields zero value and empty string values as explicitly specified in
// configuration file.

// NewConfigVal is constructor for ConfigVal. It will wrap its argument into ConfigVal.
func NewConfigVal[T any](v T) ConfigVal[T] {
	return ConfigVal[T]{v: &v}
}

// ConfigVal is a wrapper for Config field value.
type ConfigVal[T any] struct {
	// Store wrapped value as pointer in order to have ability to distinguish between
	// unspecified ConfigVal and a value that is the same as zero value for wrapped type.
	// In this case a zero value for pointer is nil.
	//
	// For example a zero value for string is "" which is impossible to distinguish from
	// explicit empty string "".
	v *T
}

// Value will return wrapped value.
//
// In case field has not been defined e.g. is zero value, then appropriate zero value of
// wrapped type will be returned.
func (o *ConfigVal[T]) Value() T {
	if o.IsNil() {
		var v T
		return v
	}
	return *o.v
}

// IsNil check if wrapped value is nil.
func (o *ConfigVal[T]) IsNil() bool {
	// Zero value for pointer type is nil.
	return o.v == nil
}

// IsZero lets yaml omitempty skip unset values.
func (o ConfigVal[T]) IsZero() bool {
	return o.v == nil
}

// UnmarshalJSON implements json.Unmarshaler interface for ConfigVal.
func (o *ConfigVal[T]) UnmarshalJSON(b []byte) error {
	var val T
	err := json.Unmarshal(b, &val)
	if err != nil {
		return err
	}
	o.v = &val
	return nil
}

// MarshalJSON implements json.Marshaler interface for ConfigVal.
func (o ConfigVal[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value())
}

// UnmarshalYAML implements yaml.Unmarshaler interface for ConfigVal.
func (o *ConfigVal[T]) UnmarshalYAML(value *yaml.Node) error {
	var val T
	if err := value.Decode(&val); err != nil {
		return err
	}
	o.v = &val
	return nil
}

// MarshalYAML implements yaml.Marshaler interface for ConfigVal.
func (o ConfigVal[T]) MarshalYAML() (any, error) {
	return o.Value(), nil
}

func CreateDumpConfCommand() Commander {
	longHelp := `Command "dump-conf" will print actual application configuration taking into account
configuration file provided and default configuration values.

Examples:

	vqcompare dump-conf
	vqcompare dump-conf -conf path/to/config.json
	vqcompare dump-conf -format yaml`

	app := &DumpConfApp{
		fs:  flag.NewFlagSet("dump-conf", flag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flFormat, "format", "json", "Output format: json or yaml")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// Make sure App implements Commander interface.
var _ Commander = (*DumpConfApp)(nil)

// DumpConfApp is subcommand application context that implements Commander interface.
// Although this is very simple application, but for consistency sake is is implemented in
// similar style as other subcommands.
type DumpConfApp struct {
	out      io.Writer
	fs       *flag.FlagSet
	gf       globalFlags
	flFormat string
}

func (d *DumpConfApp) Name() string {
	return d.fs.Name()
}

func (d *DumpConfApp) Help() {
	d.fs.Usage()
}

// Run is main entry point into DumpConfApp execution.
func (d *DumpConfApp) Run(args []string) error {
	if err := d.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}
	d.gf.Apply()

	// Load application configuration.
	cfg, err := LoadConfig(d.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	switch d.flFormat {
	case "json":
		enc := json.NewEncoder(d.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(d.out)
		enc.SetIndent(2)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	default:
		return &AppError{exitCode: 2, msg: fmt.Sprintf("unknown output format: %s", d.flFormat)}
	}
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// Also, report if configuration is valid.
	if err := cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	return nil
}
