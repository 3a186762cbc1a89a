package tracker

import (
	"context"
	"image"
	"iter"
	"math"
	"time"
)

// Detection is one subject found in one sampled frame.
type Detection struct {
	Box  Rect `json:"box" yaml:"box"`
	Kind Kind `json:"kind" yaml:"kind"`
}

// Weight returns the fixed confidence weight for the detection's kind.
func (d Detection) Weight() float64 {
	return d.Kind.Weight()
}

// FrameSample holds the detections found at one sampled timestamp.
// Dropped samples failed to decode or detect and carry no detections.
type FrameSample struct {
	Index      int         `json:"index" yaml:"index"`
	Timestamp  float64     `json:"timestamp" yaml:"timestamp"`
	Detections []Detection `json:"detections,omitempty" yaml:"detections,omitempty"`
	Dropped    bool        `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Clip describes the source being tracked.
type Clip struct {
	Duration float64 // seconds
	Width    int
	Height   int
}

func (c Clip) frame() Size {
	return Size{Width: c.Width, Height: c.Height}
}

// FrameSource decodes a single frame at a timestamp. Implementations must be
// safe for concurrent use when the tracker runs more than one worker.
type FrameSource interface {
	Frame(ctx context.Context, timestamp float64) (image.Image, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context, timestamp float64) (image.Image, error)

func (f FrameSourceFunc) Frame(ctx context.Context, timestamp float64) (image.Image, error) {
	return f(ctx, timestamp)
}

// Detector finds subjects in one decoded frame. Box coordinates are in the
// frame's pixel space.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// Timestamps returns evenly spaced mid-interval sample positions for a clip
// of the given duration. The count is reduced so that neighbouring samples
// are at least minSpacing apart, but never below one. Every timestamp lies
// strictly inside (0, duration).
func Timestamps(duration float64, count int, minSpacing float64) []float64 {
	if duration <= 0 || count < 1 {
		return nil
	}
	n := count
	if minSpacing > 0 {
		if fit := int(math.Floor(duration / minSpacing)); fit < n {
			n = fit
		}
	}
	if n < 1 {
		n = 1
	}

	step := duration / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) + 0.5) * step
	}
	return out
}

// Frame is one element of a sampling pass.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
	Err       error

	// Deadline ends the sample's time budget, shared by decode and
	// detection. Zero means unbounded.
	Deadline time.Time
}

// Sampler materializes frames at evenly spaced timestamps.
type Sampler struct {
	Count      int
	MinSpacing float64
	Timeout    time.Duration
}

// Frames returns a lazy sequence of decoded frames. Each call samples anew.
// Decode failures are reported on the Frame and do not end the sequence;
// cancellation of ctx does.
func (s Sampler) Frames(ctx context.Context, clip Clip, src FrameSource) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for i, ts := range Timestamps(clip.Duration, s.Count, s.MinSpacing) {
			if ctx.Err() != nil {
				return
			}
			f := Frame{Index: i, Timestamp: ts}
			if s.Timeout > 0 {
				f.Deadline = time.Now().Add(s.Timeout)
			}
			f.Image, f.Err = decode(ctx, src, f)
			if !yield(f) {
				return
			}
		}
	}
}

func decode(ctx context.Context, src FrameSource, f Frame) (image.Image, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()
	return src.Frame(ctx, f.Timestamp)
}

// bound limits ctx to the frame's deadline, if it has one.
func (f Frame) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.Deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, f.Deadline)
}
