// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffmpeg family related tools.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/video"
)

var (
	ffprobeCmd = "ffprobe"
	ffmpegCmd  = "ffmpeg"
	// Environment variables that take precedence over $PATH lookup.
	ffprobeEnv = "VQCOMPARE_FFPROBE"
	ffmpegEnv  = "VQCOMPARE_FFMPEG"
)

// ErrNoVideoStream is returned when ffprobe finds no video stream in a file.
var ErrNoVideoStream = errors.New("no video stream")

// FfmpegPath will return path to ffmpeg binary and error if path is not found.
func FfmpegPath() (string, error) {
	p, err := FindTool(ffmpegCmd, ffmpegEnv)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return p, nil
}

// FfprobePath will return path to ffprobe binary and error if path is not found.
func FfprobePath() (string, error) {
	p, err := FindTool(ffprobeCmd, ffprobeEnv)
	if err != nil {
		return "", fmt.Errorf("ffprobe not found: %w", err)
	}
	return p, nil
}

// FfprobeExtractMetadata will query video file metadata via ffprobe found at
// ffprobePath.
//
// Frame count is read from container metadata (nb_frames), the stream is not decoded to
// count frames. Containers without nb_frames (e.g. mkv) get an estimate from duration
// and frame rate.
func FfprobeExtractMetadata(ffprobePath, videoFile string) (video.Metadata, error) {
	var vmeta video.Metadata

	if _, err := os.Stat(videoFile); err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() os.Stat: %w", err)
	}

	ffprobeArgs := []string{
		"-v", "quiet",
		"-threads", "0",
		"-select_streams", "v:0",
		"-of", "json",
		"-show_format",
		"-show_streams",
		videoFile,
	}
	cmd := exec.Command(ffprobePath, ffprobeArgs...) //#nosec G204
	logging.Debugf("Running: %s\n", cmd)
	out, err := cmd.Output()
	if err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() exec error: %w", err)
	}

	// A temporary structures to unmarshal JSON from ffprobe output.
	type metadata struct {
		CodecName string  `json:"codec_name,omitempty"`
		FrameRate string  `json:"r_frame_rate,omitempty"`
		PixFmt    string  `json:"pix_fmt,omitempty"`
		Duration  float64 `json:"duration,omitempty,string"`
		Width     int     `json:"width,omitempty"`
		Height    int     `json:"height,omitempty"`
		BitRate   int     `json:"bit_rate,omitempty,string"`
		// Can be "N/A", parsed separately.
		NbFrames string `json:"nb_frames,omitempty"`
	}
	// Unmarshal metadata from both "streams" and "format" JSON objects.
	meta := &struct {
		Streams []metadata
		Format  metadata
	}{}
	if err := json.Unmarshal(out, &meta); err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() json.Unmarshal: %w", err)
	}
	if len(meta.Streams) == 0 {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() %s: %w", videoFile, ErrNoVideoStream)
	}

	s := meta.Streams[0]
	vmeta = video.Metadata{
		CodecName:  s.CodecName,
		FrameRate:  s.FrameRate,
		PixFmt:     s.PixFmt,
		Duration:   s.Duration,
		Width:      s.Width,
		Height:     s.Height,
		BitRate:    s.BitRate,
		FrameCount: parseCount(s.NbFrames),
	}
	// For mkv container Streams does not contain duration, so we have to look into Format.
	vmeta.Duration = math.Max(vmeta.Duration, meta.Format.Duration)
	if vmeta.FrameCount == 0 {
		vmeta.FrameCount = estimateCount(vmeta.Duration, vmeta.FrameRate)
	}
	logging.Debugf("%s %+v", videoFile, vmeta)

	return vmeta, nil
}

// parseCount parses ffprobe frame count, unknown values ("N/A", "") yield 0.
func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// estimateCount derives frame count from duration and "num/den" frame rate.
func estimateCount(duration float64, frameRate string) int {
	num, den, ok := strings.Cut(frameRate, "/")
	if !ok {
		den = "1"
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d <= 0 || duration <= 0 {
		return 0
	}
	return int(math.Round(duration * n / d))
}
