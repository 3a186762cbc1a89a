package pipeline

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/clipcraft/internal/config"
	"github.com/kikiluvv/clipcraft/internal/detect"
	"github.com/kikiluvv/clipcraft/internal/detect/cascade"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// NewDetector builds the configured detection backend, wrapped with
// downscaling and overlap suppression. The closer releases the backend.
func NewDetector(logger zerolog.Logger, cfg config.DetectorConfig) (tracker.Detector, io.Closer, error) {
	var (
		det    tracker.Detector
		closer io.Closer
	)

	switch cfg.Backend {
	case config.BackendCascade, "":
		cc := cascade.DefaultConfig()
		cc.FrontalPath = cfg.FrontalCascade
		cc.ProfilePath = cfg.ProfileCascade
		cc.BodyPath = cfg.BodyCascade
		cc.BodyFallbackOnly = cfg.BodyFallbackOnly
		d, err := cascade.New(logger, cc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load cascades: %w", err)
		}
		det, closer = d, d
	case config.BackendWorker:
		w, err := detect.NewWorker(logger, cfg.WorkerCommand)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start detector worker: %w", err)
		}
		det, closer = w, w
	default:
		return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}

	det = detect.Downscale(det, cfg.MaxWidth)
	det = detect.Suppress(det, cfg.SuppressOverlap)
	return det, closer, nil
}
