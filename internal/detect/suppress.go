package detect

import (
	"context"
	"image"
	"sort"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// SuppressOverlaps greedily keeps the highest-weight boxes and discards any
// box whose intersection covers more than overlap of an already kept box.
// An overlap of zero or less returns dets unchanged.
func SuppressOverlaps(dets []tracker.Detection, overlap float64) []tracker.Detection {
	if overlap <= 0 || len(dets) < 2 {
		return dets
	}

	order := make([]tracker.Detection, len(dets))
	copy(order, dets)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Weight() > order[j].Weight()
	})

	kept := make([]tracker.Detection, 0, len(order))
	for _, cand := range order {
		drop := false
		for _, k := range kept {
			area := k.Box.Area()
			if area > 0 && k.Box.Intersect(cand.Box).Area()/area > overlap {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, cand)
		}
	}
	return kept
}

// Suppress wraps d so its output passes through SuppressOverlaps.
func Suppress(d tracker.Detector, overlap float64) tracker.Detector {
	if overlap <= 0 {
		return d
	}
	return tracker.DetectorFunc(func(ctx context.Context, img image.Image) ([]tracker.Detection, error) {
		dets, err := d.Detect(ctx, img)
		if err != nil {
			return nil, err
		}
		return SuppressOverlaps(dets, overlap), nil
	})
}
