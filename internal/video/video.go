// Package video encodes recorded frame sequences by piping raw RGB data
// to an external ffmpeg process.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/stexplore/strec/internal/episode"
)

// ErrNoFrames is returned when an empty frame sequence is encoded.
var ErrNoFrames = errors.New("video: no frames to encode")

// FFmpeg encodes frames through the ffmpeg binary. The zero value is not
// usable; construct with NewFFmpeg.
type FFmpeg struct {
	binary    string
	framerate int
	logger    *slog.Logger
}

// NewFFmpeg creates an encoder using the given ffmpeg binary path and
// output framerate. An empty binary defaults to "ffmpeg" on PATH.
func NewFFmpeg(binary string, framerate int, logger *slog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if framerate <= 0 {
		framerate = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{binary: binary, framerate: framerate, logger: logger}
}

// Encode writes the frames to outputPath as H.264 MP4. All frames must
// share the dimensions of the first; the call blocks until ffmpeg exits
// and returns its stderr on failure.
func (e *FFmpeg) Encode(ctx context.Context, frames []episode.Frame, outputPath string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	w, h := frames[0].Width, frames[0].Height
	for i, f := range frames {
		if f.Width != w || f.Height != h {
			return fmt.Errorf("video: frame %d is %dx%d, want %dx%d", i, f.Width, f.Height, w, h)
		}
		if len(f.Pix) != w*h*3 {
			return fmt.Errorf("video: frame %d has %d pixel bytes, want %d", i, len(f.Pix), w*h*3)
		}
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%d", e.framerate),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("video: opening ffmpeg stdin: %w", err)
	}

	e.logger.Debug("launching ffmpeg",
		"binary", e.binary, "frames", len(frames), "size", fmt.Sprintf("%dx%d", w, h), "output", outputPath)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("video: starting ffmpeg: %w", err)
	}

	writeErr := writeFrames(stdin, frames)
	closeErr := stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("video: ffmpeg failed: %w: %s", err, stderr.String())
	}
	if writeErr != nil {
		return fmt.Errorf("video: piping frames: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("video: closing ffmpeg stdin: %w", closeErr)
	}
	return nil
}

func writeFrames(w io.Writer, frames []episode.Frame) error {
	for _, f := range frames {
		if _, err := w.Write(f.Pix); err != nil {
			return err
		}
	}
	return nil
}
