package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

type contextKey string

const configKey contextKey = "config"

// Detector backends
const (
	BackendCascade = "cascade"
	BackendWorker  = "worker"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir string `yaml:"work_dir"`
	TempDir string `yaml:"temp_dir"`

	Tracker  tracker.Config `yaml:"tracker"`
	Detector DetectorConfig `yaml:"detector"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Render   RenderConfig   `yaml:"render"`
	Server   ServerConfig   `yaml:"server"`
}

type DetectorConfig struct {
	Backend string `yaml:"backend" env:"CLIPCRAFT_DETECTOR"`

	FrontalCascade string `yaml:"frontal_cascade"`
	ProfileCascade string `yaml:"profile_cascade"`
	BodyCascade    string `yaml:"body_cascade"`

	// WorkerCommand is the argv of an external detector process.
	WorkerCommand []string `yaml:"worker_command"`

	MaxWidth         int     `yaml:"max_width"`
	SuppressOverlap  float64 `yaml:"suppress_overlap"`
	BodyFallbackOnly bool    `yaml:"body_fallback_only"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path" env:"CLIPCRAFT_FFMPEG"`
	ProbePath  string `yaml:"probe_path" env:"CLIPCRAFT_FFPROBE"`
	Threads    int    `yaml:"threads"`
}

type RenderConfig struct {
	Resolution tracker.Resolution `yaml:"resolution"`
}

type ServerConfig struct {
	Listen    string `yaml:"listen" env:"CLIPCRAFT_LISTEN"`
	MediaRoot string `yaml:"media_root" env:"CLIPCRAFT_MEDIA_ROOT"`
}

// Load reads configuration from file or returns defaults. Environment
// variables, including those in ./.env, override the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.FFmpeg.BinaryPath, "CLIPCRAFT_FFMPEG")
	set(&c.FFmpeg.ProbePath, "CLIPCRAFT_FFPROBE")
	set(&c.Detector.Backend, "CLIPCRAFT_DETECTOR")
	set(&c.Server.Listen, "CLIPCRAFT_LISTEN")
	set(&c.Server.MediaRoot, "CLIPCRAFT_MEDIA_ROOT")
}

// Validate checks ranges that would otherwise produce nonsense plans.
func (c *Config) Validate() error {
	th := c.Tracker.Thresholds
	switch {
	case th.AspectTrigger < 0:
		return fmt.Errorf("tracker.thresholds.aspect_trigger cannot be negative")
	case th.SeparationTrigger < 0 || th.SeparationTrigger > 1:
		return fmt.Errorf("tracker.thresholds.separation_trigger must be within [0, 1]")
	case th.Quorum <= 0 || th.Quorum > 1:
		return fmt.Errorf("tracker.thresholds.quorum must be within (0, 1]")
	case th.MinAverageSubjects <= 0:
		return fmt.Errorf("tracker.thresholds.min_average_subjects must be positive")
	case c.Tracker.Samples < 0:
		return fmt.Errorf("tracker.samples cannot be negative")
	case c.Tracker.Workers < 0:
		return fmt.Errorf("tracker.workers cannot be negative")
	case c.Detector.SuppressOverlap < 0 || c.Detector.SuppressOverlap > 1:
		return fmt.Errorf("detector.suppress_overlap must be within [0, 1]")
	}

	switch c.Detector.Backend {
	case BackendCascade:
	case BackendWorker:
		if len(c.Detector.WorkerCommand) == 0 {
			return fmt.Errorf("detector.worker_command is required for the worker backend")
		}
	default:
		return fmt.Errorf("unknown detector backend %q", c.Detector.Backend)
	}

	if c.Render.Resolution != "" {
		if _, err := tracker.ParseResolution(string(c.Render.Resolution)); err != nil {
			return err
		}
	}
	return nil
}

// TrackerConfig returns the tracking parameters with the render tier applied.
func (c *Config) TrackerConfig() tracker.Config {
	tc := c.Tracker
	if c.Render.Resolution != "" {
		tc.Resolution = c.Render.Resolution
	}
	return tc
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir: "./work",
		TempDir: "./temp",
		Tracker: tracker.DefaultConfig(),
		Detector: DetectorConfig{
			Backend:        BackendCascade,
			FrontalCascade: "./models/haarcascade_frontalface_default.xml",
			ProfileCascade: "./models/haarcascade_profileface.xml",
			BodyCascade:    "./models/haarcascade_upperbody.xml",
			MaxWidth:       960,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Render: RenderConfig{
			Resolution: tracker.DefaultResolution,
		},
		Server: ServerConfig{
			Listen:    ":8080",
			MediaRoot: "./media",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./clipcraft.yaml",
		"./clipcraft.yml",
		filepath.Join(os.Getenv("HOME"), ".clipcraft", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
