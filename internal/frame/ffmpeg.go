// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/evolution-gaming/vqcompare/internal/logging"
	"github.com/evolution-gaming/vqcompare/internal/lw"
	"github.com/evolution-gaming/vqcompare/internal/tools"
)

// Cap for captured ffmpeg diagnostics.
const stderrBufferSize = 64 * 1024

// FfmpegConfig exposes parameters for FfmpegSource creation.
type FfmpegConfig struct {
	FfmpegPath  string
	FfprobePath string
	// Extra ffmpeg options placed before "-i", e.g. "-hwaccel auto".
	DecodeArgs []string
}

// FfmpegSource is a Source that decodes video frames via an ffmpeg child process
// writing rgb24 rawvideo to a pipe.
type FfmpegSource struct {
	path      string
	desc      Descriptor
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	reader    *bufio.Reader
	stderr    bytes.Buffer
	frameSize int
	read      int

	closeOnce sync.Once
	closeErr  error
	closed    bool
	// Decoder exited on its own before the declared frame count.
	exited bool
}

// NewFfmpegSource probes videoFile with ffprobe and starts the ffmpeg decoder.
//
// Frame count reported by ffprobe is trusted, the stream is not re-scanned.
func NewFfmpegSource(cfg FfmpegConfig, videoFile string) (*FfmpegSource, error) {
	if cfg.FfmpegPath == "" || cfg.FfprobePath == "" {
		return nil, &StreamUnavailableError{
			Path: videoFile,
			Err:  errors.New("ffmpeg and ffprobe are required to decode video"),
		}
	}

	meta, err := tools.FfprobeExtractMetadata(cfg.FfprobePath, videoFile)
	if err != nil {
		return nil, &StreamUnavailableError{Path: videoFile, Err: err}
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, &StreamUnavailableError{
			Path: videoFile,
			Err:  fmt.Errorf("invalid frame geometry %dx%d", meta.Width, meta.Height),
		}
	}

	s := &FfmpegSource{
		path: videoFile,
		desc: Descriptor{
			Width:      meta.Width,
			Height:     meta.Height,
			FrameCount: meta.FrameCount,
		},
		frameSize: meta.Width * meta.Height * 3,
	}

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	args = append(args, cfg.DecodeArgs...)
	args = append(args,
		"-i", videoFile,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	s.cmd = exec.Command(cfg.FfmpegPath, args...) //#nosec G204
	// Keep only the head of decoder diagnostics, a corrupt stream can produce
	// an error line per frame.
	s.cmd.Stderr = lw.TruncateWriter(&s.stderr, stderrBufferSize)

	s.stdout, err = s.cmd.StdoutPipe()
	if err != nil {
		return nil, &StreamUnavailableError{Path: videoFile, Err: err}
	}
	logging.Debugf("Decoder command: %v", s.cmd.Args)
	if err := s.cmd.Start(); err != nil {
		return nil, &StreamUnavailableError{Path: videoFile, Err: fmt.Errorf("starting decoder: %w", err)}
	}
	s.reader = bufio.NewReaderSize(s.stdout, s.frameSize)

	return s, nil
}

func (s *FfmpegSource) Descriptor() Descriptor {
	return s.desc
}

// Next reads the next rgb24 frame from decoder output.
//
// A decoder that stops before the declared frame count yields ErrEndOfStream, it is up
// to the caller to decide whether that is premature. The error then carries the decoder
// exit status and the first line of its diagnostics.
func (s *FfmpegSource) Next() (Buffer, error) {
	if s.closed || s.read >= s.desc.FrameCount {
		return Buffer{}, ErrEndOfStream
	}

	pix := make([]uint8, s.frameSize)
	if _, err := io.ReadFull(s.reader, pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Buffer{}, s.decoderExited()
		}
		return Buffer{}, fmt.Errorf("reading frame %d of %s: %w", s.read, s.path, err)
	}
	s.read++

	return Buffer{Width: s.desc.Width, Height: s.desc.Height, Channels: 3, Pix: pix}, nil
}

// decoderExited reaps a decoder whose output ran dry and describes why it stopped.
func (s *FfmpegSource) decoderExited() error {
	s.closed = true
	s.exited = true
	// Wait also flushes the stderr copy, so diagnostics are complete afterwards.
	waitErr := s.cmd.Wait()
	diag := firstLine(s.stderr.String())
	logging.Debugf("Decoder for %s ran dry after %d of %d frames: %v %s",
		s.path, s.read, s.desc.FrameCount, waitErr, s.stderr.Bytes())

	switch {
	case waitErr != nil && diag != "":
		return fmt.Errorf("%w after %d frames: decoder %v: %s", ErrEndOfStream, s.read, waitErr, diag)
	case waitErr != nil:
		return fmt.Errorf("%w after %d frames: decoder %v", ErrEndOfStream, s.read, waitErr)
	case diag != "":
		return fmt.Errorf("%w after %d frames: %s", ErrEndOfStream, s.read, diag)
	}
	return ErrEndOfStream
}

// firstLine returns the first non-blank line of s.
func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// Close stops the decoder. Process is killed if frames are still pending, so the exit
// status of an interrupted decode is not reported.
func (s *FfmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if s.exited {
			return
		}
		if s.read < s.desc.FrameCount {
			s.stdout.Close()
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
			logging.Debugf("Decoder for %s stopped after %d of %d frames: %s",
				s.path, s.read, s.desc.FrameCount, s.stderr.Bytes())
			return
		}
		// Drain surplus output so the decoder can exit on its own.
		_, _ = io.Copy(io.Discard, s.reader)
		if err := s.cmd.Wait(); err != nil {
			s.closeErr = fmt.Errorf("decoder for %s: %w: %s", s.path, err, s.stderr.Bytes())
		}
	})
	return s.closeErr
}
