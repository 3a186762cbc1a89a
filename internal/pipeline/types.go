package pipeline

import (
	"context"
	"time"

	"github.com/kikiluvv/clipcraft/internal/ffmpeg"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Transcoder is the part of ffmpeg.Executor the pipeline drives.
type Transcoder interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	FrameSource(input string, offset float64) tracker.FrameSource
	Reframe(ctx context.Context, input, output string, res *tracker.Result, opts ffmpeg.RenderOptions) error
}

// Request selects a clip and the target framing.
type Request struct {
	Input       string
	Output      string
	AspectRatio tracker.AspectRatio
	// Resolution overrides the configured render tier when set.
	Resolution tracker.Resolution

	// Start and End bound the clip within Input. A zero End means the end
	// of the file.
	Start time.Duration
	End   time.Duration

	// SampleProgress is called as samples complete.
	SampleProgress func(done, total int)
	// RenderProgress receives ffmpeg progress during Reframe.
	RenderProgress ffmpeg.ProgressFunc
}

// Outcome is the result of tracking one clip.
type Outcome struct {
	Result *tracker.Result
	// Tracked is false when the pass could not run and the plain center
	// plan was substituted.
	Tracked bool
	Filter  ffmpeg.Filter

	Video    *ffmpeg.VideoInfo
	Start    time.Duration
	Duration time.Duration
}
