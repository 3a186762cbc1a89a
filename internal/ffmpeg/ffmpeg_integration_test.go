package ffmpeg_test

import (
	"context"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/clipcraft/internal/ffmpeg"
	"github.com/kikiluvv/clipcraft/internal/pipeline"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed, skipping integration test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed, skipping integration test")
	}
}

// TestIntegration_TrackAndReframe runs a real probe, real frame decoding and
// a real render around a detector that sees two people on every frame.
func TestIntegration_TrackAndReframe(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "interview.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration=4:size=1280x720:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=4",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac",
		"-y", input,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\n%s", err, out)
	}

	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.InfoLevel)
	executor, err := ffmpeg.New(logger, ffmpeg.Config{})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	frames := 0
	det := tracker.DetectorFunc(func(ctx context.Context, img image.Image) ([]tracker.Detection, error) {
		frames++
		b := img.Bounds()
		if b.Dx() != 1280 || b.Dy() != 720 {
			t.Errorf("decoded frame is %v, want 1280x720", b)
		}
		return []tracker.Detection{
			{Box: tracker.Rect{X: 80, Y: 200, Width: 160, Height: 160}, Kind: tracker.FrontalFace},
			{Box: tracker.Rect{X: 1040, Y: 220, Width: 160, Height: 160}, Kind: tracker.ProfileFace},
		}, nil
	})

	cfg := tracker.DefaultConfig()
	cfg.Samples = 4
	cfg.Resolution = tracker.Res480p
	p := pipeline.NewWithBackends(logger, cfg, executor, det, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	output := filepath.Join(dir, "vertical.mp4")
	out, err := p.Reframe(ctx, pipeline.Request{
		Input:       input,
		Output:      output,
		AspectRatio: tracker.Vertical,
		Start:       time.Second,
	})
	if err != nil {
		t.Fatalf("Reframe failed: %v", err)
	}

	if frames != 4 {
		t.Errorf("detector saw %d frames, want 4", frames)
	}
	if !out.Tracked || out.Result.Mode != tracker.Letterbox {
		t.Errorf("expected tracked letterbox, got tracked=%v mode=%s", out.Tracked, out.Result.Mode)
	}
	if out.Result.Stats.DroppedSamples != 0 {
		t.Errorf("%d samples dropped", out.Result.Stats.DroppedSamples)
	}

	info, err := executor.ProbeVideo(ctx, output)
	if err != nil {
		t.Fatalf("failed to probe output: %v", err)
	}
	if info.Width != 480 || info.Height != 854 {
		t.Errorf("output is %dx%d, want 480x854", info.Width, info.Height)
	}
	if got := info.Duration.Seconds(); got < 2.5 || got > 3.5 {
		t.Errorf("output duration = %.2fs, want about 3s", got)
	}
	if !info.HasAudio {
		t.Error("audio track was dropped")
	}

	if _, err := os.Stat(output); err != nil {
		t.Errorf("output missing: %v", err)
	}
}
