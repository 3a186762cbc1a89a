package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/kikiluvv/clipcraft/internal/tracker"
	"github.com/kikiluvv/clipcraft/pkg/util"
)

// ExtractFrame decodes the single frame at timestamp seconds into input.
// The frame is streamed back as PNG over stdout, so no temp file is written.
func (e *Executor) ExtractFrame(ctx context.Context, input string, timestamp float64) (image.Image, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if timestamp < 0 {
		return nil, fmt.Errorf("timestamp cannot be negative: %f", timestamp)
	}

	args := []string{
		"-ss", util.FormatDuration(time.Duration(timestamp * float64(time.Second))),
		"-i", input,
		"-frames:v", "1",
		"-an", "-sn",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	out, err := e.capture(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("frame extraction at %.3fs failed: %w", timestamp, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no frame at %.3fs", timestamp)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// FrameSource returns a tracker.FrameSource reading frames from input.
// Timestamps are relative to offset seconds into the file. Each call spawns
// its own ffmpeg process, so the source is safe for concurrent use.
func (e *Executor) FrameSource(input string, offset float64) tracker.FrameSource {
	return tracker.FrameSourceFunc(func(ctx context.Context, timestamp float64) (image.Image, error) {
		return e.ExtractFrame(ctx, input, offset+timestamp)
	})
}
