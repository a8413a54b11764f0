// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application Config related tests.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/evolution-gaming/vqcompare/internal/frame"
	"github.com/evolution-gaming/vqcompare/internal/vqm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func Test_loadDefaultConfig(t *testing.T) {
	c, err := loadDefaultConfig()
	assert.NoError(t, err, "Should create DefaultConfig without errors")

	assert.NoError(t, c.Verify(), "DefaultConfig should be valid")
	assert.Equal(t, vqm.DefaultSSIMWindow, c.SSIMWindow.Value())
	assert.Equal(t, vqm.DefaultSSIMSigma, c.SSIMSigma.Value())
	assert.Equal(t, "report.csv", c.ReportFileName.Value())
	assert.GreaterOrEqual(t, c.Workers.Value(), 1)
}

func Test_loadDefaultConfig_WithoutTools(t *testing.T) {
	// Messing up PATH should result in failure detecting ffmpeg and ffprobe, still
	// images do not need them so default config stays valid.
	t.Setenv("PATH", "")
	t.Setenv("VQCOMPARE_FFMPEG", "")
	t.Setenv("VQCOMPARE_FFPROBE", "")
	c, err := loadDefaultConfig()
	require.NoError(t, err)

	assert.Empty(t, c.FfmpegPath.Value())
	assert.Empty(t, c.FfprobePath.Value())
	assert.NoError(t, c.Verify())
}

func Test_loadConfigFile(t *testing.T) {
	// For this case we do not strictly need config that is valid as per Config.Verify(),
	// just verify that loading configuration from file works.
	full := Config{
		FfmpegPath:     NewConfigVal("test_ffmpeg"),
		FfprobePath:    NewConfigVal("test_ffprobe"),
		DecodeArgs:     NewConfigVal("-hwaccel auto"),
		SSIMWindow:     NewConfigVal(7),
		SSIMSigma:      NewConfigVal(1.2),
		Workers:        NewConfigVal(3),
		ReportFileName: NewConfigVal("test_report.csv"),
	}
	tests := map[string]struct {
		ext   string
		want  Config
		given []byte
	}{
		"Full JSON": {
			ext: "json",
			given: []byte(`{
				"ffmpeg_path": "test_ffmpeg",
				"ffprobe_path": "test_ffprobe",
				"decode_args": "-hwaccel auto",
				"ssim_window": 7,
				"ssim_sigma": 1.2,
				"workers": 3,
				"report_file_name": "test_report.csv"
			}`),
			want: full,
		},
		"Partial JSON": {
			ext: "json",
			given: []byte(`{
				"ffmpeg_path": "test_ffmpeg",
				"ssim_window": 5
			}`),
			want: Config{
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				SSIMWindow: NewConfigVal(5),
			},
		},
		"Empty JSON": {
			ext:   "json",
			given: []byte(`{}`),
			want:  Config{},
		},
		"Explicit empty string is not unset": {
			ext:   "json",
			given: []byte(`{"decode_args": ""}`),
			want:  Config{DecodeArgs: NewConfigVal("")},
		},
		"Full YAML": {
			ext: "yaml",
			given: []byte(`
ffmpeg_path: test_ffmpeg
ffprobe_path: test_ffprobe
decode_args: -hwaccel auto
ssim_window: 7
ssim_sigma: 1.2
workers: 3
report_file_name: test_report.csv
`),
			want: full,
		},
		"Partial YML": {
			ext:   "yml",
			given: []byte("workers: 1\n"),
			want:  Config{Workers: NewConfigVal(1)},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			// Create config file with given contents.
			confFile := path.Join(t.TempDir(), fmt.Sprintf("config.%s", tt.ext))
			err := os.WriteFile(confFile, tt.given, 0o600)
			require.NoError(t, err)

			// Load config and assert contents are as expected.
			got, err := loadConfigFromFile(confFile)
			assert.NoError(t, err, "Should be no error loading configuration from file")

			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_loadConfigFile_Negative(t *testing.T) {
	tests := map[string]struct {
		file    string
		given   []byte
		wantErr string
	}{
		"Unknown format": {
			file:    "config.toml",
			given:   []byte(`workers = 1`),
			wantErr: "unknown config format: .toml",
		},
		"Empty JSON file": {
			file:    "config.json",
			given:   []byte{},
			wantErr: "JSON file is empty: invalid configuration",
		},
		"Empty YAML file": {
			file:    "config.yaml",
			given:   []byte("\n"),
			wantErr: "YAML file is empty: invalid configuration",
		},
		"Malformed JSON": {
			file:    "config.json",
			given:   []byte(`{"workers": "two"}`),
			wantErr: "config from JSON document",
		},
		"Malformed YAML": {
			file:    "config.yaml",
			given:   []byte("workers: [1, 2]\n"),
			wantErr: "config from YAML document",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			confFile := path.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(confFile, tt.given, 0o600))

			_, err := loadConfigFromFile(confFile)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(path.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func Test_LoadConfig_OverridesDefaults(t *testing.T) {
	confFile := path.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(confFile, []byte("ssim_window: 5\nreport_file_name: out.csv\n"), 0o600))

	got, err := LoadConfig(confFile)
	require.NoError(t, err)

	assert.Equal(t, 5, got.SSIMWindow.Value())
	assert.Equal(t, "out.csv", got.ReportFileName.Value())
	// Untouched by file.
	assert.Equal(t, vqm.DefaultSSIMSigma, got.SSIMSigma.Value())
	assert.NoError(t, got.Verify())
}

func Test_Config_Verify(t *testing.T) {
	existing := path.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(existing, nil, 0o755))

	fixValidConf := func() Config {
		return Config{
			FfmpegPath:     NewConfigVal(existing),
			FfprobePath:    NewConfigVal(""),
			DecodeArgs:     NewConfigVal("-hwaccel auto"),
			SSIMWindow:     NewConfigVal(11),
			SSIMSigma:      NewConfigVal(1.5),
			Workers:        NewConfigVal(1),
			ReportFileName: NewConfigVal("report.csv"),
		}
	}
	require.NoError(t, func() error { c := fixValidConf(); return c.Verify() }())

	tests := map[string]struct {
		modify  func(c *Config)
		wantMsg string
	}{
		"Missing ffmpeg": {
			modify:  func(c *Config) { c.FfmpegPath = NewConfigVal("/no/such/ffmpeg") },
			wantMsg: "invalid ffmpeg path",
		},
		"Missing ffprobe": {
			modify:  func(c *Config) { c.FfprobePath = NewConfigVal("/no/such/ffprobe") },
			wantMsg: "invalid ffprobe path",
		},
		"Unterminated quote in decode args": {
			modify:  func(c *Config) { c.DecodeArgs = NewConfigVal(`-vf "scale=1:1`) },
			wantMsg: "invalid decode args",
		},
		"Even SSIM window": {
			modify:  func(c *Config) { c.SSIMWindow = NewConfigVal(8) },
			wantMsg: "SSIM window must be a positive odd number",
		},
		"Zero SSIM window": {
			modify:  func(c *Config) { c.SSIMWindow = NewConfigVal(0) },
			wantMsg: "SSIM window must be a positive odd number",
		},
		"Negative SSIM sigma": {
			modify:  func(c *Config) { c.SSIMSigma = NewConfigVal(-1.0) },
			wantMsg: "SSIM sigma must be positive",
		},
		"Zero workers": {
			modify:  func(c *Config) { c.Workers = NewConfigVal(0) },
			wantMsg: "workers must be at least 1",
		},
		"Empty report name": {
			modify:  func(c *Config) { c.ReportFileName = NewConfigVal("") },
			wantMsg: "empty report file name",
		},
		"Empty config": {
			modify:  func(c *Config) { *c = Config{} },
			wantMsg: "SSIM window must be a positive odd number, SSIM sigma must be positive",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := fixValidConf()
			tt.modify(&c)
			err := c.Verify()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func Test_Config_FfmpegConfig(t *testing.T) {
	c := Config{
		FfmpegPath:  NewConfigVal("/usr/bin/ffmpeg"),
		FfprobePath: NewConfigVal("/usr/bin/ffprobe"),
		DecodeArgs:  NewConfigVal(`-hwaccel auto -vf "scale=640:360"`),
	}

	got, err := c.FfmpegConfig()
	require.NoError(t, err)
	assert.Equal(t, frame.FfmpegConfig{
		FfmpegPath:  "/usr/bin/ffmpeg",
		FfprobePath: "/usr/bin/ffprobe",
		DecodeArgs:  []string{"-hwaccel", "auto", "-vf", "scale=640:360"},
	}, got)

	c.DecodeArgs = NewConfigVal(`"unterminated`)
	_, err = c.FfmpegConfig()
	assert.ErrorContains(t, err, "FfmpegConfig() decode args")
}

func Test_Config_MetricConfig(t *testing.T) {
	c := Config{SSIMWindow: NewConfigVal(7), SSIMSigma: NewConfigVal(2.0)}
	assert.Equal(t, vqm.MetricConfig{SSIMWindow: 7, SSIMSigma: 2}, c.MetricConfig())
}

func Test_Config_OverrideFrom(t *testing.T) {
	fixBaseConf := func() Config {
		return Config{
			FfmpegPath:     NewConfigVal("base_ffmpeg"),
			FfprobePath:    NewConfigVal("base_ffprobe"),
			DecodeArgs:     NewConfigVal(""),
			SSIMWindow:     NewConfigVal(11),
			SSIMSigma:      NewConfigVal(1.5),
			Workers:        NewConfigVal(4),
			ReportFileName: NewConfigVal("base_report.csv"),
		}
	}

	tests := map[string]struct {
		want        Config
		overrideSrc Config
	}{
		"Full config overrides all fields": {
			overrideSrc: Config{
				FfmpegPath:     NewConfigVal("test_ffmpeg"),
				FfprobePath:    NewConfigVal("test_ffprobe"),
				DecodeArgs:     NewConfigVal("-threads 1"),
				SSIMWindow:     NewConfigVal(7),
				SSIMSigma:      NewConfigVal(1.0),
				Workers:        NewConfigVal(1),
				ReportFileName: NewConfigVal("test_report.csv"),
			},
			want: Config{
				FfmpegPath:     NewConfigVal("test_ffmpeg"),
				FfprobePath:    NewConfigVal("test_ffprobe"),
				DecodeArgs:     NewConfigVal("-threads 1"),
				SSIMWindow:     NewConfigVal(7),
				SSIMSigma:      NewConfigVal(1.0),
				Workers:        NewConfigVal(1),
				ReportFileName: NewConfigVal("test_report.csv"),
			},
		},
		"Partial config overrides partial fields": {
			overrideSrc: Config{
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				Workers:    NewConfigVal(2),
			},
			want: Config{
				// Overridden fields.
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				Workers:    NewConfigVal(2),
				// Unmodified fields.
				FfprobePath:    NewConfigVal("base_ffprobe"),
				DecodeArgs:     NewConfigVal(""),
				SSIMWindow:     NewConfigVal(11),
				SSIMSigma:      NewConfigVal(1.5),
				ReportFileName: NewConfigVal("base_report.csv"),
			},
		},
		"Empty config does not override any fields": {
			overrideSrc: Config{},
			want:        fixBaseConf(),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			// Create a base Config object. This is the Config that we shall attempt to
			// override.
			given := fixBaseConf()

			// Attempt to override config from overrideSrc.
			given.OverrideFrom(tt.overrideSrc)

			assert.Equal(t, tt.want, given)
		})
	}
}

func Test_ConfigVal_YAML(t *testing.T) {
	out, err := yaml.Marshal(Config{Workers: NewConfigVal(2), DecodeArgs: NewConfigVal("")})
	require.NoError(t, err)
	assert.Equal(t, "decode_args: \"\"\nworkers: 2\n", string(out))
}

func Test_DumpConfApp_Run(t *testing.T) {
	tests := map[string]struct {
		confFile string
		conf     string
		args     []string
		want     string
	}{
		"JSON": {
			confFile: "config.json",
			conf:     `{"report_file_name": "test_report.csv"}`,
			want:     `"report_file_name": "test_report.csv"`,
		},
		"YAML": {
			confFile: "config.yaml",
			conf:     "ssim_window: 7\n",
			args:     []string{"-format", "yaml"},
			want:     "ssim_window: 7\n",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			commandOutput := &bytes.Buffer{}

			confFile := path.Join(t.TempDir(), tc.confFile)
			require.NoError(t, os.WriteFile(confFile, []byte(tc.conf), 0o600))

			cmd := CreateDumpConfCommand().(*DumpConfApp)
			// Redirect output to buffer
			cmd.out = commandOutput

			err := cmd.Run(append([]string{"-conf", confFile}, tc.args...))
			assert.NoError(t, err, "Unexpected error running dump-conf")
			// Check that config dump contains options we specified in config file.
			assert.Contains(t, commandOutput.String(), tc.want)
		})
	}

	t.Run("Unknown format", func(t *testing.T) {
		cmd := CreateDumpConfCommand().(*DumpConfApp)
		cmd.out = &bytes.Buffer{}
		err := cmd.Run([]string{"-format", "toml"})
		assert.ErrorContains(t, err, "unknown output format: toml")
	})
}
