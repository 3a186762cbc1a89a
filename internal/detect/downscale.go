package detect

import (
	"context"
	"image"

	"github.com/nfnt/resize"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Downscale wraps d so frames wider than maxWidth are resized before
// detection. Returned boxes are mapped back to the original frame.
func Downscale(d tracker.Detector, maxWidth int) tracker.Detector {
	if maxWidth <= 0 {
		return d
	}
	return tracker.DetectorFunc(func(ctx context.Context, img image.Image) ([]tracker.Detection, error) {
		bounds := img.Bounds()
		if bounds.Dx() <= maxWidth {
			return d.Detect(ctx, img)
		}

		small := resize.Resize(uint(maxWidth), 0, img, resize.Bilinear)
		factor := float64(bounds.Dx()) / float64(small.Bounds().Dx())

		dets, err := d.Detect(ctx, small)
		if err != nil {
			return nil, err
		}
		out := make([]tracker.Detection, len(dets))
		for i, det := range dets {
			box := det.Box.Scale(factor)
			box.X += float64(bounds.Min.X)
			box.Y += float64(bounds.Min.Y)
			out[i] = tracker.Detection{Box: box, Kind: det.Kind}
		}
		return out, nil
	})
}
