// Package cascade detects faces and upper bodies with OpenCV Haar cascades.
package cascade

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/kikiluvv/clipcraft/internal/detect"
	"github.com/kikiluvv/clipcraft/internal/logging"
	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Config holds cascade file locations and detection parameters.
type Config struct {
	FrontalPath string
	ProfilePath string
	BodyPath    string

	// BodyFallbackOnly runs the upper-body cascade only on frames where no
	// face was found.
	BodyFallbackOnly bool

	FaceScale     float64
	FaceNeighbors int
	FaceMinSize   int
	BodyScale     float64
	BodyNeighbors int
	BodyMinSize   int

	ClipLimit float64
	TileGrid  int
}

// DefaultConfig returns the tuned cascade parameters. Paths are left empty.
func DefaultConfig() Config {
	return Config{
		FaceScale:     1.05,
		FaceNeighbors: 3,
		FaceMinSize:   30,
		BodyScale:     1.1,
		BodyNeighbors: 3,
		BodyMinSize:   50,
		ClipLimit:     2.0,
		TileGrid:      8,
	}
}

// Detector implements tracker.Detector. OpenCV classifiers are not safe for
// concurrent use, so calls are serialized.
type Detector struct {
	logger zerolog.Logger
	cfg    Config

	mu      sync.Mutex
	frontal gocv.CascadeClassifier
	profile *gocv.CascadeClassifier
	body    *gocv.CascadeClassifier
	clahe   gocv.CLAHE
}

// New loads the cascades named in cfg. The frontal cascade is required;
// profile and body cascades are skipped when their path is empty.
func New(logger zerolog.Logger, cfg Config) (*Detector, error) {
	if cfg.FrontalPath == "" {
		return nil, fmt.Errorf("frontal cascade path cannot be empty")
	}
	d := &Detector{
		logger: logging.Component(logger, "cascade"),
		cfg:    cfg,
		clahe:  gocv.NewCLAHEWithParams(cfg.ClipLimit, image.Pt(cfg.TileGrid, cfg.TileGrid)),
	}

	d.frontal = gocv.NewCascadeClassifier()
	if !d.frontal.Load(cfg.FrontalPath) {
		d.Close()
		return nil, fmt.Errorf("failed to load frontal cascade %s", cfg.FrontalPath)
	}

	var err error
	if d.profile, err = loadOptional(cfg.ProfilePath); err != nil {
		d.Close()
		return nil, err
	}
	if d.body, err = loadOptional(cfg.BodyPath); err != nil {
		d.Close()
		return nil, err
	}

	d.logger.Debug().
		Str("frontal", cfg.FrontalPath).
		Bool("profile", d.profile != nil).
		Bool("body", d.body != nil).
		Msg("cascades loaded")
	return d, nil
}

func loadOptional(path string) (*gocv.CascadeClassifier, error) {
	if path == "" {
		return nil, nil
	}
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return nil, fmt.Errorf("failed to load cascade %s", path)
	}
	return &c, nil
}

// Detect runs frontal, profile (both directions) and upper-body passes on a
// CLAHE-equalized grayscale copy of img and returns every hit. A single
// OpenCV call cannot be interrupted: when ctx ends mid-pass Detect returns
// at once, and the pass finishes in the background while holding the
// classifiers, so the next call waits for it.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]tracker.Detection, error) {
	gray, err := gocv.ImageGrayToMatGray(detect.Grayscale(img))
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return await(ctx, func() ([]tracker.Detection, error) {
		defer gray.Close()
		return d.run(ctx, gray)
	})
}

// await runs fn in its own goroutine and returns early if ctx ends first.
func await(ctx context.Context, fn func() ([]tracker.Detection, error)) ([]tracker.Detection, error) {
	type result struct {
		dets []tracker.Detection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		dets, err := fn()
		done <- result{dets, err}
	}()

	select {
	case r := <-done:
		return r.dets, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Detector) run(ctx context.Context, gray gocv.Mat) ([]tracker.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	eq := gocv.NewMat()
	defer eq.Close()
	d.clahe.Apply(gray, &eq)

	faceMin := image.Pt(d.cfg.FaceMinSize, d.cfg.FaceMinSize)
	var dets []tracker.Detection

	for _, r := range d.frontal.DetectMultiScaleWithParams(eq, d.cfg.FaceScale, d.cfg.FaceNeighbors, 0, faceMin, image.Point{}) {
		dets = append(dets, tracker.Detection{Box: toRect(r), Kind: tracker.FrontalFace})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.profile != nil {
		for _, r := range d.profile.DetectMultiScaleWithParams(eq, d.cfg.FaceScale, d.cfg.FaceNeighbors, 0, faceMin, image.Point{}) {
			dets = append(dets, tracker.Detection{Box: toRect(r), Kind: tracker.ProfileFace})
		}

		flipped := gocv.NewMat()
		gocv.Flip(eq, &flipped, 1)
		width := eq.Cols()
		for _, r := range d.profile.DetectMultiScaleWithParams(flipped, d.cfg.FaceScale, d.cfg.FaceNeighbors, 0, faceMin, image.Point{}) {
			dets = append(dets, tracker.Detection{Box: unflip(r, width), Kind: tracker.ProfileFace})
		}
		flipped.Close()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if d.body != nil && (!d.cfg.BodyFallbackOnly || len(dets) == 0) {
		bodyMin := image.Pt(d.cfg.BodyMinSize, d.cfg.BodyMinSize)
		for _, r := range d.body.DetectMultiScaleWithParams(eq, d.cfg.BodyScale, d.cfg.BodyNeighbors, 0, bodyMin, image.Point{}) {
			dets = append(dets, tracker.Detection{Box: HeadFromBody(toRect(r)), Kind: tracker.UpperBody})
		}
	}

	d.logger.Debug().Int("detections", len(dets)).Msg("cascade pass complete")
	return dets, nil
}

// Close releases the classifiers.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frontal.Close()
	if d.profile != nil {
		d.profile.Close()
	}
	if d.body != nil {
		d.body.Close()
	}
	return d.clahe.Close()
}

func toRect(r image.Rectangle) tracker.Rect {
	return tracker.Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// unflip maps a box found on the mirrored frame back to the original.
func unflip(r image.Rectangle, width int) tracker.Rect {
	box := toRect(r)
	box.X = float64(width) - box.X - box.Width
	return box
}

// HeadFromBody estimates the head inside an upper-body box: the middle half
// horizontally, starting a tenth of the way down and 30% of the height tall.
func HeadFromBody(body tracker.Rect) tracker.Rect {
	return tracker.Rect{
		X:      body.X + body.Width/4,
		Y:      body.Y + body.Height*0.1,
		Width:  body.Width / 2,
		Height: body.Height * 0.3,
	}
}
