package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/clipcraft/internal/config"
	"github.com/kikiluvv/clipcraft/internal/ffmpeg"
	"github.com/kikiluvv/clipcraft/internal/logging"
	"github.com/kikiluvv/clipcraft/internal/metrics"
	"github.com/kikiluvv/clipcraft/internal/pipeline"
	"github.com/kikiluvv/clipcraft/internal/server"
	"github.com/kikiluvv/clipcraft/internal/tracker"
	"github.com/kikiluvv/clipcraft/pkg/util"
)

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool

	input        string
	output       string
	aspect       string
	resolution   string
	startAt      string
	endAt        string
	outputFormat string
	noProgress   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "clipcraft",
	Short:         "clipcraft - subject-aware reframing for short clips",
	Long:          "Samples a clip, finds the people in it and crops or letterboxes it to 9:16, 1:1 or 16:9.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose, jsonLogs)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./clipcraft.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log JSON lines instead of console output")

	for _, cmd := range []*cobra.Command{trackCmd, reframeCmd} {
		cmd.Flags().StringVarP(&input, "input", "i", "", "input video")
		cmd.Flags().StringVarP(&aspect, "aspect", "a", string(tracker.Vertical), "target aspect ratio (9:16, 1:1, 16:9)")
		cmd.Flags().StringVarP(&resolution, "resolution", "r", "", "output tier (4K, 1080p, 720p, 480p)")
		cmd.Flags().StringVar(&startAt, "start", "", "segment start (SS, MM:SS or HH:MM:SS.mmm)")
		cmd.Flags().StringVar(&endAt, "end", "", "segment end")
		cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide progress bars")
		cmd.MarkFlagRequired("input")
	}
	trackCmd.Flags().StringVar(&outputFormat, "output-format", "yaml", "result format (yaml, json)")
	reframeCmd.Flags().StringVarP(&output, "output", "o", "", "output video")
	reframeCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(reframeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Decide how to reframe a clip and print the plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		req, err := buildRequest()
		if err != nil {
			return err
		}
		writer, err := resultWriter(outputFormat)
		if err != nil {
			return err
		}

		pipe, err := pipeline.New(log.Logger, cfg, nil)
		if err != nil {
			return err
		}
		defer pipe.Close()

		if !noProgress {
			req.SampleProgress = sampleBar()
		}

		out, err := pipe.Track(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writer(cmd.OutOrStdout(), report(out))
	},
}

var reframeCmd = &cobra.Command{
	Use:   "reframe",
	Short: "Track a clip and render it at the target aspect ratio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		req, err := buildRequest()
		if err != nil {
			return err
		}
		if util.SamePath(input, output) {
			return fmt.Errorf("output %s would overwrite the input", output)
		}
		req.Output = output
		if err := util.EnsureDir(filepath.Dir(output)); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		pipe, err := pipeline.New(log.Logger, cfg, nil)
		if err != nil {
			return err
		}
		defer pipe.Close()

		if !noProgress {
			req.SampleProgress = sampleBar()
			req.RenderProgress = renderBar()
		}

		out, err := pipe.Reframe(cmd.Context(), req)
		if err != nil {
			return err
		}

		cliLog := logging.WithComponent("cli")
		cliLog.Info().
			Str("output", output).
			Str("mode", string(out.Result.Mode)).
			Bool("tracked", out.Tracked).
			Msg("reframe complete")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tracking API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		m := metrics.New()
		pipe, err := pipeline.New(log.Logger, cfg, m)
		if err != nil {
			return err
		}
		defer pipe.Close()

		srv, err := server.New(log.Logger, pipe, m.Handler(), cfg.Server)
		if err != nil {
			return err
		}
		return srv.Run(cmd.Context())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "./clipcraft.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		cliLog := logging.WithComponent("cli")
		cliLog.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func buildRequest() (pipeline.Request, error) {
	if !util.FileExists(input) {
		return pipeline.Request{}, fmt.Errorf("input %s does not exist", input)
	}
	ratio, err := tracker.ParseAspectRatio(aspect)
	if err != nil {
		return pipeline.Request{}, err
	}
	var res tracker.Resolution
	if resolution != "" {
		if res, err = tracker.ParseResolution(resolution); err != nil {
			return pipeline.Request{}, err
		}
	}

	req := pipeline.Request{Input: input, AspectRatio: ratio, Resolution: res}
	if startAt != "" {
		if req.Start, err = util.ParseTimestamp(startAt); err != nil {
			return pipeline.Request{}, err
		}
	}
	if endAt != "" {
		if req.End, err = util.ParseTimestamp(endAt); err != nil {
			return pipeline.Request{}, err
		}
	}
	return req, nil
}

// trackReport is what `track` prints.
type trackReport struct {
	Input    string          `json:"input" yaml:"input"`
	Start    float64         `json:"start" yaml:"start"`
	Duration float64         `json:"duration" yaml:"duration"`
	Tracked  bool            `json:"tracked" yaml:"tracked"`
	Result   *tracker.Result `json:"result" yaml:"result"`
	Filter   string          `json:"filter" yaml:"filter"`
}

func report(out *pipeline.Outcome) trackReport {
	r := trackReport{
		Start:    out.Start.Seconds(),
		Duration: out.Duration.Seconds(),
		Tracked:  out.Tracked,
		Result:   out.Result,
		Filter:   out.Filter.Graph,
	}
	if out.Video != nil {
		r.Input = out.Video.FilePath
	}
	return r
}

func resultWriter(format string) (func(io.Writer, trackReport) error, error) {
	switch format {
	case "yaml", "yml":
		return func(w io.Writer, r trackReport) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(r); err != nil {
				return err
			}
			return enc.Close()
		}, nil
	case "json":
		return func(w io.Writer, r trackReport) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// sampleBar returns a progress callback drawing a bar on stderr. The bar is
// created on the first tick, once the sample count is known.
func sampleBar() func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Sampling"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(done)
	}
}

// renderBar shows encoded output time, since ffmpeg reports no total.
func renderBar() ffmpeg.ProgressFunc {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	return func(p *ffmpeg.Progress) {
		bar.Describe("Rendering " + p.Time)
		bar.Set64(p.OutTimeMicros / 1000)
	}
}
