// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/vqcompare/internal/logging"
)

// Extensions decoded in-process, everything else goes through ffmpeg. GIFs keep all of
// their frames, the rest are still images.
var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// IsImageFile reports if path is decoded in-process rather than by ffmpeg.
func IsImageFile(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Opener creates Sources for media files.
type Opener struct {
	Ffmpeg FfmpegConfig
}

// NewOpener creates an Opener using given ffmpeg configuration for video files.
func NewOpener(cfg FfmpegConfig) *Opener {
	return &Opener{Ffmpeg: cfg}
}

// Open returns a Source for path. Any failure is a *StreamUnavailableError.
func (o *Opener) Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &StreamUnavailableError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &StreamUnavailableError{Path: path, Err: errors.New("is a directory")}
	}

	// Avoid returning typed nil pointers wrapped in Source.
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		s, err := NewGifSource(path)
		if err != nil {
			return nil, err
		}
		logging.Debugf("Opened %s as gif with %d frames %s", path, s.Descriptor().FrameCount, s.Descriptor())
		return s, nil
	}
	if IsImageFile(path) {
		s, err := NewImageSource(path)
		if err != nil {
			return nil, err
		}
		logging.Debugf("Opened %s as %s image %s", path, s.Format(), s.Descriptor())
		return s, nil
	}
	s, err := NewFfmpegSource(o.Ffmpeg, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
