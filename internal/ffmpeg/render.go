package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kikiluvv/clipcraft/internal/tracker"
	"github.com/kikiluvv/clipcraft/pkg/util"
)

// RenderSettings are the encoder parameters for one output tier.
type RenderSettings struct {
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	CRF          int
	Preset       string
	// Bitrate, when set, is used as target and max rate with a buffer
	// twice as large, e.g. "30M".
	Bitrate string
}

var tierSettings = map[tracker.Resolution]struct {
	bitrate string
	preset  string
}{
	tracker.Res4K:    {"100M", "medium"},
	tracker.Res1080p: {"30M", "slow"},
	tracker.Res720p:  {"5M", "slow"},
	tracker.Res480p:  {"2M", "medium"},
}

// SettingsFor returns the encoder settings for a resolution tier.
func SettingsFor(res tracker.Resolution) RenderSettings {
	s := RenderSettings{
		VideoCodec:   DefaultVideoCodec,
		AudioCodec:   DefaultAudioCodec,
		AudioBitrate: DefaultAudioBitrate,
		CRF:          DefaultCRF,
		Preset:       DefaultPreset,
	}
	if tier, ok := tierSettings[res]; ok {
		s.Bitrate = tier.bitrate
		s.Preset = tier.preset
	}
	return s
}

// args returns the codec arguments.
func (s RenderSettings) args() []string {
	videoCodec := s.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	args := []string{"-c:v", videoCodec}

	if s.Bitrate != "" {
		args = append(args, "-b:v", s.Bitrate, "-maxrate", s.Bitrate)
		if buf := doubleRate(s.Bitrate); buf != "" {
			args = append(args, "-bufsize", buf)
		}
	}

	preset := s.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	crf := s.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	args = append(args, "-preset", preset, "-crf", strconv.Itoa(crf))

	audioCodec := s.AudioCodec
	if audioCodec == "" {
		audioCodec = DefaultAudioCodec
	}
	args = append(args, "-c:a", audioCodec)
	if s.AudioBitrate != "" {
		args = append(args, "-b:a", s.AudioBitrate)
	}
	return append(args, "-movflags", "+faststart")
}

// doubleRate turns "30M" into "60M". Unparseable rates yield "".
func doubleRate(rate string) string {
	num := strings.TrimRight(rate, "kKmMgG")
	unit := rate[len(num):]
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.Itoa(n*2) + unit
}

// RenderOptions configures one render of a filter over an input.
type RenderOptions struct {
	Input    string
	Output   string
	Filter   Filter
	Settings RenderSettings

	// Start and Duration select a segment of the input. Zero values render
	// the whole file.
	Start    time.Duration
	Duration time.Duration

	ProgressFunc ProgressFunc
}

// Render encodes opts.Input through opts.Filter into opts.Output.
func (e *Executor) Render(ctx context.Context, opts RenderOptions) error {
	if err := validateRenderOptions(opts); err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	e.logger.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Bool("complex", opts.Filter.Complex).
		Msg("starting render")

	var args []string
	if opts.Start > 0 {
		args = append(args, "-ss", util.FormatDuration(opts.Start))
	}
	args = append(args, "-i", opts.Input)
	if opts.Duration > 0 {
		args = append(args, "-t", util.FormatDuration(opts.Duration))
	}
	args = append(args, opts.Filter.Args()...)
	args = append(args, opts.Settings.args()...)
	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("render completed")
	return nil
}

// Reframe renders a tracking result into output with the settings of the
// result's resolution tier.
func (e *Executor) Reframe(ctx context.Context, input, output string, res *tracker.Result, opts RenderOptions) error {
	filter, err := BuildFilter(res)
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}
	opts.Input = input
	opts.Output = output
	opts.Filter = filter
	if opts.Settings == (RenderSettings{}) {
		opts.Settings = SettingsFor(res.Resolution)
	}
	return e.Render(ctx, opts)
}

// validateRenderOptions validates the render options
func validateRenderOptions(opts RenderOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Input == opts.Output {
		return fmt.Errorf("output must differ from input")
	}
	if opts.Filter.Graph == "" {
		return fmt.Errorf("filter cannot be empty")
	}
	if opts.Settings.CRF < 0 || opts.Settings.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if opts.Start < 0 || opts.Duration < 0 {
		return fmt.Errorf("segment bounds cannot be negative")
	}
	return nil
}
