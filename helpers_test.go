// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable helpers and fixtures for tests.
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

// Geometry reported by fake ffprobe, "clip_tall" files are taller.
const (
	fakeWidth      = 8
	fakeHeight     = 4
	fakeTallHeight = 6
	fakeFrames     = 10
	fakeShortAt    = 7
)

// fakeVideos holds paths produced by fixFakeVideoTools.
type fakeVideos struct {
	// Application config file pointing to fake ffmpeg/ffprobe
	ConfFile string
	// Reference clip
	Ref string
	// Same content as Ref
	Same string
	// Every sample of Ref shifted by +2
	Noisy string
	// Ref truncated after fakeShortAt frames
	Short string
	// Different height
	Tall string
}

// fixFakeVideoTools fixture creates fake ffprobe and ffmpeg executables, a set of "video"
// files they understand and application config pointing to them.
//
// Fake ffmpeg picks raw rgb24 frames to emit by input file name.
func fixFakeVideoTools(t *testing.T) fakeVideos {
	t.Helper()
	dir := t.TempDir()

	frameSize := fakeWidth * fakeHeight * 3
	ref := make([]byte, 0, frameSize*fakeFrames)
	for i := 0; i < fakeFrames; i++ {
		for j := 0; j < frameSize; j++ {
			ref = append(ref, byte(10+(i*7+j*3)%200))
		}
	}
	noisy := make([]byte, len(ref))
	for i, v := range ref {
		noisy[i] = v + 2
	}
	writeFile(t, path.Join(dir, "ref.raw"), ref, 0o644)
	writeFile(t, path.Join(dir, "noisy.raw"), noisy, 0o644)
	writeFile(t, path.Join(dir, "short.raw"), ref[:frameSize*fakeShortAt], 0o644)

	v := fakeVideos{
		Ref:   path.Join(dir, "clip_ref.mp4"),
		Same:  path.Join(dir, "clip_same.mp4"),
		Noisy: path.Join(dir, "clip_noisy.mp4"),
		Short: path.Join(dir, "clip_short.mp4"),
		Tall:  path.Join(dir, "clip_tall.mp4"),
	}
	for _, f := range []string{v.Ref, v.Same, v.Noisy, v.Short, v.Tall} {
		writeFile(t, f, []byte("fake"), 0o644)
	}

	probe := func(h int) string {
		return fmt.Sprintf(`{"streams":[{"width":%d,"height":%d,"nb_frames":"%d"}],"format":{}}`,
			fakeWidth, h, fakeFrames)
	}
	ffprobe := path.Join(dir, "ffprobe")
	writeFile(t, ffprobe, []byte(fmt.Sprintf(`#!/bin/sh
case "$*" in
*clip_tall.mp4*) echo '%s' ;;
*) echo '%s' ;;
esac
`, probe(fakeTallHeight), probe(fakeHeight))), 0o755)

	ffmpeg := path.Join(dir, "ffmpeg")
	writeFile(t, ffmpeg, []byte(fmt.Sprintf(`#!/bin/sh
case "$*" in
*clip_noisy.mp4*) cat '%[1]s/noisy.raw' ;;
*clip_short.mp4*) cat '%[1]s/short.raw' ;;
*) cat '%[1]s/ref.raw' ;;
esac
`, dir)), 0o755)

	v.ConfFile = path.Join(dir, "conf.json")
	writeFile(t, v.ConfFile, []byte(fmt.Sprintf(
		`{"ffmpeg_path": %q, "ffprobe_path": %q, "workers": 2}`, ffmpeg, ffprobe)), 0o644)

	return v
}

// fixPNG fixture writes a w x h gradient PNG to dir, red channel is shifted by delta.
func fixPNG(t *testing.T, dir, name string, w, h int, delta uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x*4) + delta, G: uint8(y * 4), B: 100, A: 255})
		}
	}
	fPath := path.Join(dir, name)
	f, err := os.Create(fPath)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return fPath
}

// fixPlanConfig fixture provides a comparison plan over given pairs (name, ref, test).
func fixPlanConfig(t *testing.T, metrics string, pairs ...[3]string) (fPath string) {
	t.Helper()
	payload := `{"Metrics": ` + metrics + `, "Pairs": [`
	for i, p := range pairs {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`{"Name": %q, "Reference": %q, "Test": %q}`, p[0], p[1], p[2])
	}
	payload += "]}"

	fPath = path.Join(t.TempDir(), "plan.json")
	writeFile(t, fPath, []byte(payload), 0o644)
	return fPath
}

// fixPlanConfigInvalid fixture provides invalid comparison plan.
func fixPlanConfigInvalid(t *testing.T) (fPath string) {
	payload := []byte(`{
		"Pairs": [
			{"Reference": "non-existent", "Test": "non-existent-too"}
		]
	}`)
	fPath = path.Join(t.TempDir(), "invalid.json")
	writeFile(t, fPath, payload, 0o644)
	return fPath
}

func writeFile(t *testing.T, fPath string, b []byte, perm fs.FileMode) {
	t.Helper()
	if err := os.WriteFile(fPath, b, perm); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}
