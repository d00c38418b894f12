// Package movie packs rendered frame sequences into motion-JPEG AVI files.
// The container is deliberately lowest-common-denominator: it plays anywhere
// without an ffmpeg install on the cluster.
package movie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/icza/mjpeg"
)

const jpegQuality = 95

// ErrNoFrames reports an assembly target without a single frame. Callers
// that reach an empty directory legitimately (a time window excluding every
// dump) can match it and move on.
var ErrNoFrames = errors.New("no frames to assemble")

// Assemble encodes every PNG under frameDir, in name order, into an AVI at
// out. Frame names embed zero-padded times, so name order is time order.
// The file is written next to its final path and renamed into place; a
// cancelled assembly leaves nothing behind. Returns the number of frames
// packed.
func Assemble(ctx context.Context, frameDir, out string, fps int) (int, error) {
	if fps < 1 {
		fps = 1
	}
	frames, err := filepath.Glob(filepath.Join(frameDir, "*.png"))
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoFrames, frameDir)
	}
	sort.Strings(frames)

	width, height, err := pngSize(frames[0])
	if err != nil {
		return 0, fmt.Errorf("reading first frame: %w", err)
	}

	tmp := out + ".tmp"
	aw, err := mjpeg.New(tmp, int32(width), int32(height), int32(fps))
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: jpegQuality}
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			aw.Close()
			os.Remove(tmp)
			return 0, err
		}
		if err := addFrame(aw, &buf, opts, frame); err != nil {
			aw.Close()
			os.Remove(tmp)
			return 0, fmt.Errorf("packing %s: %w", filepath.Base(frame), err)
		}
	}

	if err := aw.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return len(frames), nil
}

func addFrame(aw mjpeg.AviWriter, buf *bytes.Buffer, opts *jpeg.Options, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	buf.Reset()
	if err := jpeg.Encode(buf, img, opts); err != nil {
		return err
	}
	return aw.AddFrame(buf.Bytes())
}

func pngSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
