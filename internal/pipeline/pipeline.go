package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/clipcraft/internal/config"
	"github.com/kikiluvv/clipcraft/internal/ffmpeg"
	"github.com/kikiluvv/clipcraft/internal/logging"
	"github.com/kikiluvv/clipcraft/internal/metrics"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Pipeline probes a clip, tracks its subjects and renders the reframed output.
type Pipeline struct {
	base     zerolog.Logger
	logger   zerolog.Logger
	media    Transcoder
	detector tracker.Detector
	closer   io.Closer
	cfg      tracker.Config
	metrics  *metrics.Metrics
}

// New creates a pipeline from application config. m may be nil.
func New(logger zerolog.Logger, appCfg *config.Config, m *metrics.Metrics) (*Pipeline, error) {
	exec, err := ffmpeg.New(logger, ffmpeg.Config{
		FFmpegPath:  appCfg.FFmpeg.BinaryPath,
		FFprobePath: appCfg.FFmpeg.ProbePath,
		Threads:     appCfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	det, closer, err := NewDetector(logger, appCfg.Detector)
	if err != nil {
		return nil, err
	}

	p := NewWithBackends(logger, appCfg.TrackerConfig(), exec, det, m)
	p.closer = closer
	return p, nil
}

// NewWithBackends creates a pipeline over an existing transcoder and detector.
func NewWithBackends(logger zerolog.Logger, cfg tracker.Config, media Transcoder, det tracker.Detector, m *metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		base:     logger,
		logger:   logging.Component(logger, "pipeline"),
		media:    media,
		detector: det,
		cfg:      cfg,
		metrics:  m,
	}
}

// Metrics returns the collectors the pipeline records into.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Track probes req.Input and runs one tracking pass over the requested
// segment. When the pass cannot run on the probed metadata the plain center
// plan is returned with Tracked unset. Unreadable sources, unsupported ratios
// and cancellation are errors.
func (p *Pipeline) Track(ctx context.Context, req Request) (*Outcome, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}
	ratio, err := tracker.ParseAspectRatio(string(req.AspectRatio))
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("input", req.Input).
		Str("ratio", string(ratio)).
		Msg("starting tracking")

	info, err := p.media.ProbeVideo(ctx, req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	start, length, err := clipWindow(req.Start, req.End, info.Duration)
	if err != nil {
		return nil, err
	}
	clip := info.Clip()
	clip.Duration = length.Seconds()

	cfg := p.cfg
	if req.Resolution != "" {
		cfg.Resolution = req.Resolution
	}
	tr := tracker.New(p.base, p.detector, cfg)
	if req.SampleProgress != nil {
		tr = tr.WithProgress(req.SampleProgress)
	}

	began := time.Now()
	tracked := true
	res, err := tr.Track(ctx, clip, ratio, p.media.FrameSource(req.Input, start.Seconds()))
	if err != nil {
		if ctx.Err() != nil {
			p.metrics.ObserveTracking(nil, time.Since(began))
			return nil, ctx.Err()
		}
		if errors.Is(err, tracker.ErrUnsupportedAspectRatio) {
			return nil, err
		}

		p.logger.Warn().Err(err).Str("input", req.Input).Msg("tracking failed, using center crop")
		res, err = tracker.CenterPlan(tracker.Size{Width: clip.Width, Height: clip.Height}, ratio, tr.Config().Resolution)
		if err != nil {
			p.metrics.ObserveTracking(nil, time.Since(began))
			return nil, err
		}
		tracked = false
	}
	p.metrics.ObserveTracking(res, time.Since(began))

	filter, err := ffmpeg.BuildFilter(res)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	return &Outcome{
		Result:   res,
		Tracked:  tracked,
		Filter:   filter,
		Video:    info,
		Start:    start,
		Duration: length,
	}, nil
}

// Reframe tracks req.Input and renders the plan into req.Output.
func (p *Pipeline) Reframe(ctx context.Context, req Request) (*Outcome, error) {
	if req.Output == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	if filepath.Clean(req.Output) == filepath.Clean(req.Input) {
		return nil, fmt.Errorf("output path cannot be the same as input path")
	}

	out, err := p.Track(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := ffmpeg.RenderOptions{ProgressFunc: req.RenderProgress}
	if req.Start > 0 || req.End > 0 {
		opts.Start = out.Start
		opts.Duration = out.Duration
	}

	err = p.media.Reframe(ctx, req.Input, req.Output, out.Result, opts)
	p.metrics.ObserveRender(err)
	if err != nil {
		return nil, fmt.Errorf("failed to reframe: %w", err)
	}

	p.logger.Info().
		Str("output", req.Output).
		Str("mode", string(out.Result.Mode)).
		Bool("tracked", out.Tracked).
		Msg("reframe complete")
	return out, nil
}

// clipWindow resolves [start, end) against the probed duration. With no
// bounds the whole file is used, even if its duration is unknown.
func clipWindow(start, end, total time.Duration) (time.Duration, time.Duration, error) {
	if start < 0 || end < 0 {
		return 0, 0, fmt.Errorf("segment bounds cannot be negative")
	}
	if start == 0 && end == 0 {
		return 0, total, nil
	}
	if end == 0 || end > total {
		end = total
	}
	if start >= end {
		return 0, 0, fmt.Errorf("%w: segment start %s is not before end %s", tracker.ErrInvalidClip, start, end)
	}
	return start, end - start, nil
}
