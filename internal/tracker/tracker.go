package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/clipcraft/internal/logging"
)

// Mode is the reframing strategy chosen for a clip.
type Mode string

const (
	Centered  Mode = "centered"
	Letterbox Mode = "letterbox"
)

// State is the terminal state of a tracking pass.
type State string

const (
	CenteredEmitted         State = "centered_emitted"
	LetterboxEmitted        State = "letterbox_emitted"
	FallbackCenteredEmitted State = "fallback_centered_emitted"
)

// Config holds tracking parameters. It is copied into the Tracker and never
// changes during a run.
type Config struct {
	Samples       int           `json:"samples" yaml:"samples"`
	MinSpacing    float64       `json:"min_spacing" yaml:"min_spacing"`
	Thresholds    Thresholds    `json:"thresholds" yaml:"thresholds"`
	BlurSigma     float64       `json:"blur_sigma" yaml:"blur_sigma"`
	Workers       int           `json:"workers" yaml:"workers"`
	SampleTimeout time.Duration `json:"sample_timeout" yaml:"sample_timeout"`
	Resolution    Resolution    `json:"resolution" yaml:"resolution"`
}

// DefaultConfig returns sensible defaults for tracking
func DefaultConfig() Config {
	return Config{
		Samples:       15,
		MinSpacing:    0.25,
		Thresholds:    DefaultThresholds(),
		BlurSigma:     20,
		Workers:       1,
		SampleTimeout: 10 * time.Second,
		Resolution:    DefaultResolution,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Samples <= 0 {
		c.Samples = def.Samples
	}
	if c.MinSpacing < 0 {
		c.MinSpacing = 0
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
	if c.BlurSigma <= 0 {
		c.BlurSigma = def.BlurSigma
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Resolution == "" {
		c.Resolution = def.Resolution
	}
	return c
}

// Result is the outcome of one tracking pass for a (clip, ratio) pair.
// Exactly one of Crop and Letterbox is set.
type Result struct {
	Mode         Mode  `json:"mode" yaml:"mode"`
	State        State `json:"state" yaml:"state"`
	UsedFallback bool  `json:"used_fallback" yaml:"used_fallback"`

	Focus     *Point         `json:"focus,omitempty" yaml:"focus,omitempty"`
	Crop      *CropRegion    `json:"crop,omitempty" yaml:"crop,omitempty"`
	Letterbox *LetterboxPlan `json:"letterbox,omitempty" yaml:"letterbox,omitempty"`

	Stats       Stats       `json:"stats" yaml:"stats"`
	Frame       Size        `json:"frame" yaml:"frame"`
	Target      Size        `json:"target" yaml:"target"`
	AspectRatio AspectRatio `json:"aspect_ratio" yaml:"aspect_ratio"`
	Resolution  Resolution  `json:"resolution" yaml:"resolution"`
}

// Tracker samples a clip, detects subjects and decides how to reframe it.
type Tracker struct {
	logger   zerolog.Logger
	detector Detector
	cfg      Config

	progress func(done, total int)
}

// New creates a tracker. Zero fields of cfg take their defaults.
func New(logger zerolog.Logger, detector Detector, cfg Config) *Tracker {
	return &Tracker{
		logger:   logging.Component(logger, "tracker"),
		detector: detector,
		cfg:      cfg.withDefaults(),
	}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// WithProgress returns a copy of the tracker that reports completed samples
// to fn. Calls to fn are serialized.
func (t *Tracker) WithProgress(fn func(done, total int)) *Tracker {
	c := *t
	c.progress = fn
	return &c
}

// Track runs one pass over clip and returns the reframing decision. Per-sample
// failures are absorbed; only invalid input and cancellation are returned.
func (t *Tracker) Track(ctx context.Context, clip Clip, ratio AspectRatio, src FrameSource) (*Result, error) {
	if !ratio.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, ratio)
	}
	if clip.Duration <= 0 || clip.Width <= 0 || clip.Height <= 0 {
		return nil, fmt.Errorf("%w: duration=%.3f size=%dx%d",
			ErrInvalidClip, clip.Duration, clip.Width, clip.Height)
	}
	out, err := OutputSize(t.cfg.Resolution, ratio)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t.logger.Debug().
		Float64("duration", clip.Duration).
		Int("width", clip.Width).
		Int("height", clip.Height).
		Str("ratio", string(ratio)).
		Msg("starting tracking pass")

	samples, err := t.collect(ctx, clip, src)
	if err != nil {
		return nil, err
	}

	res := Decide(samples, clip.frame(), ratio, out, t.cfg.Thresholds, t.cfg.BlurSigma)
	res.Resolution = t.cfg.Resolution

	event := t.logger.Info().
		Str("mode", string(res.Mode)).
		Bool("fallback", res.UsedFallback).
		Int("samples", res.Stats.Samples).
		Int("dropped", res.Stats.DroppedSamples).
		Float64("avg_subjects", res.Stats.AverageSubjectCount).
		Float64("trigger_fraction", res.Stats.TriggerFraction).
		Dur("elapsed", time.Since(start))
	if res.Focus != nil {
		event = event.Float64("focus_x", res.Focus.X).Float64("focus_y", res.Focus.Y)
	}
	event.Msg("tracking pass complete")

	return &res, nil
}

// collect produces one FrameSample per timestamp, in index order.
func (t *Tracker) collect(ctx context.Context, clip Clip, src FrameSource) ([]FrameSample, error) {
	sampler := Sampler{Count: t.cfg.Samples, MinSpacing: t.cfg.MinSpacing}
	stamps := Timestamps(clip.Duration, sampler.Count, sampler.MinSpacing)
	samples := make([]FrameSample, len(stamps))
	frame := clip.frame()

	var mu sync.Mutex
	done := 0
	tick := func() {
		if t.progress == nil {
			return
		}
		mu.Lock()
		done++
		t.progress(done, len(stamps))
		mu.Unlock()
	}

	if t.cfg.Workers == 1 {
		sampler.Timeout = t.cfg.SampleTimeout
		for f := range sampler.Frames(ctx, clip, src) {
			samples[f.Index] = t.detectFrame(ctx, f, frame)
			tick()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return samples, nil
	}

	var g errgroup.Group
	g.SetLimit(t.cfg.Workers)
	for i, ts := range stamps {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			samples[i] = t.sampleAt(ctx, src, i, ts, frame)
			tick()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// sampleAt decodes and detects one timestamp. Both steps share the sample's
// deadline, the same budget Sampler.Frames hands out on the sequential path.
func (t *Tracker) sampleAt(ctx context.Context, src FrameSource, index int, ts float64, frame Size) FrameSample {
	if ctx.Err() != nil {
		return FrameSample{Index: index, Timestamp: ts, Dropped: true}
	}
	f := Frame{Index: index, Timestamp: ts}
	if t.cfg.SampleTimeout > 0 {
		f.Deadline = time.Now().Add(t.cfg.SampleTimeout)
	}
	f.Image, f.Err = decode(ctx, src, f)
	return t.detectFrame(ctx, f, frame)
}

func (t *Tracker) detectFrame(ctx context.Context, f Frame, frame Size) FrameSample {
	s := FrameSample{Index: f.Index, Timestamp: f.Timestamp}
	if f.Err != nil || f.Image == nil {
		t.logger.Warn().Err(f.Err).Float64("timestamp", f.Timestamp).Msg("frame decode failed, dropping sample")
		s.Dropped = true
		return s
	}

	ctx, cancel := f.bound(ctx)
	defer cancel()
	dets, err := t.detector.Detect(ctx, f.Image)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		t.logger.Warn().Err(err).Float64("timestamp", f.Timestamp).Msg("detection failed, dropping sample")
		s.Dropped = true
		return s
	}

	s.Detections = clipToFrame(dets, frame)
	t.logger.Debug().
		Int("index", f.Index).
		Float64("timestamp", f.Timestamp).
		Int("detections", len(s.Detections)).
		Msg("sample processed")
	return s
}

// clipToFrame drops empty boxes and trims the rest to the frame bounds.
func clipToFrame(dets []Detection, frame Size) []Detection {
	bounds := frame.Bounds()
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Box.Empty() {
			continue
		}
		box := d.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		out = append(out, Detection{Box: box, Kind: d.Kind})
	}
	return out
}

// Decide turns a set of samples into a Result. It is a pure function of its
// inputs; Track uses it after sampling.
func Decide(samples []FrameSample, frame Size, ratio AspectRatio, out Size, th Thresholds, blurSigma float64) Result {
	agg := Aggregate(samples, frame, th)
	res := Result{
		Stats:       agg.Stats,
		Frame:       frame,
		Target:      out,
		AspectRatio: ratio,
	}

	if ratio.AllowsLetterbox() && agg.Letterbox {
		plan := PlanLetterbox(frame, agg.SpanCenter, out, blurSigma)
		res.Mode = Letterbox
		res.State = LetterboxEmitted
		res.Letterbox = &plan
		return res
	}

	focus := frame.Center()
	res.State = CenteredEmitted
	if agg.HasFocus {
		focus = agg.Focus
	} else {
		res.UsedFallback = true
		res.State = FallbackCenteredEmitted
	}
	crop := PlanCentered(frame, focus, ratio, out)
	res.Mode = Centered
	res.Focus = &focus
	res.Crop = &crop
	return res
}

// CenterPlan is the untracked plain center crop that callers use when a
// tracking pass could not be performed.
func CenterPlan(frame Size, ratio AspectRatio, res Resolution) (*Result, error) {
	if !ratio.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, ratio)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: size=%dx%d", ErrInvalidClip, frame.Width, frame.Height)
	}
	if res == "" {
		res = DefaultResolution
	}
	out, err := OutputSize(res, ratio)
	if err != nil {
		return nil, err
	}
	focus := frame.Center()
	crop := PlanCentered(frame, focus, ratio, out)
	return &Result{
		Mode:         Centered,
		State:        FallbackCenteredEmitted,
		UsedFallback: true,
		Focus:        &focus,
		Crop:         &crop,
		Frame:        frame,
		Target:       out,
		AspectRatio:  ratio,
		Resolution:   res,
	}, nil
}
