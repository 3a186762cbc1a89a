package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipcraft.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tracker.Samples != 15 || cfg.Tracker.Thresholds != tracker.DefaultThresholds() {
		t.Errorf("unexpected tracker defaults: %+v", cfg.Tracker)
	}
	if cfg.Detector.Backend != BackendCascade {
		t.Errorf("backend = %q", cfg.Detector.Backend)
	}
	if cfg.Render.Resolution != tracker.Res1080p {
		t.Errorf("resolution = %q", cfg.Render.Resolution)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	path := writeConfig(t, `
tracker:
  samples: 9
  workers: 4
  sample_timeout: 3s
  thresholds:
    quorum: 0.75
detector:
  max_width: 640
render:
  resolution: 720p
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tracker.Samples != 9 || cfg.Tracker.Workers != 4 {
		t.Errorf("tracker = %+v", cfg.Tracker)
	}
	if cfg.Tracker.SampleTimeout != 3*time.Second {
		t.Errorf("sample timeout = %v", cfg.Tracker.SampleTimeout)
	}
	// unset threshold fields keep their defaults
	if cfg.Tracker.Thresholds.Quorum != 0.75 || cfg.Tracker.Thresholds.AspectTrigger != 1.5 {
		t.Errorf("thresholds = %+v", cfg.Tracker.Thresholds)
	}
	if cfg.Detector.MaxWidth != 640 || cfg.Detector.FrontalCascade == "" {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	if got := cfg.TrackerConfig().Resolution; got != tracker.Res720p {
		t.Errorf("tracker resolution = %q", got)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "tracker: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsZeroQuorum(t *testing.T) {
	path := writeConfig(t, `
tracker:
  thresholds:
    quorum: 0
    min_average_subjects: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for zero quorum")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CLIPCRAFT_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("CLIPCRAFT_MEDIA_ROOT", "/srv/media")

	cfg, err := Load(writeConfig(t, "ffmpeg:\n  binary_path: /usr/bin/ffmpeg\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FFmpeg.BinaryPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("binary path = %q", cfg.FFmpeg.BinaryPath)
	}
	if cfg.Server.MediaRoot != "/srv/media" {
		t.Errorf("media root = %q", cfg.Server.MediaRoot)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"quorum above one", func(c *Config) { c.Tracker.Thresholds.Quorum = 1.2 }, true},
		{"zero quorum", func(c *Config) { c.Tracker.Thresholds.Quorum = 0 }, true},
		{"zero average subjects", func(c *Config) { c.Tracker.Thresholds.MinAverageSubjects = 0 }, true},
		{"quorum of one", func(c *Config) { c.Tracker.Thresholds.Quorum = 1 }, false},
		{"negative aspect", func(c *Config) { c.Tracker.Thresholds.AspectTrigger = -1 }, true},
		{"separation above one", func(c *Config) { c.Tracker.Thresholds.SeparationTrigger = 2 }, true},
		{"negative workers", func(c *Config) { c.Tracker.Workers = -2 }, true},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "magic" }, true},
		{"worker without command", func(c *Config) { c.Detector.Backend = BackendWorker }, true},
		{"worker with command", func(c *Config) {
			c.Detector.Backend = BackendWorker
			c.Detector.WorkerCommand = []string{"python3", "detect.py"}
		}, false},
		{"bad resolution", func(c *Config) { c.Render.Resolution = "8k" }, true},
		{"overlap out of range", func(c *Config) { c.Detector.SuppressOverlap = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Tracker.Samples = 21
	cfg.Server.Listen = "127.0.0.1:9000"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Tracker.Samples != 21 || loaded.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Tracker.SampleTimeout != cfg.Tracker.SampleTimeout {
		t.Errorf("sample timeout = %v, want %v", loaded.Tracker.SampleTimeout, cfg.Tracker.SampleTimeout)
	}
}

func TestContext(t *testing.T) {
	cfg := Default()
	cfg.WorkDir = "/tmp/clipcraft"
	ctx := WithConfig(context.Background(), cfg)
	if FromContext(ctx).WorkDir != "/tmp/clipcraft" {
		t.Error("config not stored in context")
	}
	if FromContext(context.Background()).WorkDir != "./work" {
		t.Error("expected defaults from empty context")
	}
}
