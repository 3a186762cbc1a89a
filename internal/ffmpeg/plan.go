package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Filter is a rendered video filter and how it must be passed to ffmpeg.
type Filter struct {
	Graph   string `json:"graph" yaml:"graph"`
	Complex bool   `json:"complex" yaml:"complex"`
}

// Args returns the ffmpeg arguments that apply the filter.
func (f Filter) Args() []string {
	if f.Complex {
		return []string{"-filter_complex", f.Graph}
	}
	return []string{"-vf", f.Graph}
}

// BuildFilter turns a tracking result into an ffmpeg filter. Centered
// results become a simple crop chain; letterbox results become a two-layer
// graph with a blurred background under the sharp foreground.
func BuildFilter(res *tracker.Result) (Filter, error) {
	if res == nil {
		return Filter{}, fmt.Errorf("result cannot be nil")
	}
	out := res.Target

	switch res.Mode {
	case tracker.Centered:
		if res.Crop == nil {
			return Filter{}, fmt.Errorf("centered result has no crop region")
		}
		src := res.Crop.Source
		fb := NewFilterBuilder().
			Crop(src.Width, src.Height, src.X, src.Y).
			Scale(out.Width, out.Height).
			SetAspect(out.Width, out.Height)
		return Filter{Graph: fb.Build()}, nil

	case tracker.Letterbox:
		plan := res.Letterbox
		if plan == nil {
			return Filter{}, fmt.Errorf("letterbox result has no plan")
		}
		bg, fg := plan.Background, plan.Foreground
		graph := &FilterGraph{}
		graph.Chain([]string{"0:v"}, NewFilterBuilder().
			ScaleCover(bg.Output.Width, bg.Output.Height).
			CropCenter(bg.Output.Width, bg.Output.Height).
			GBlur(bg.BlurSigma), "bg")
		graph.Chain([]string{"0:v"}, NewFilterBuilder().
			Crop(fg.Source.Width, fg.Source.Height, fg.Source.X, fg.Source.Y).
			Scale(fg.Output.Width, fg.Output.Height), "fg")
		graph.Chain([]string{"bg", "fg"}, NewFilterBuilder().
			Overlay(overlayPosition(plan)).
			SetAspect(bg.Output.Width, bg.Output.Height), "")
		return Filter{Graph: graph.Build(), Complex: true}, nil
	}
	return Filter{}, fmt.Errorf("unknown mode %q", res.Mode)
}

// overlayPosition returns x and y expressions for the foreground layer.
func overlayPosition(plan *tracker.LetterboxPlan) (string, string) {
	if plan.OverlayAnchor == tracker.AnchorCenter {
		return "(W-w)/2", "(H-h)/2"
	}
	return strconv.Itoa(plan.Foreground.OffsetX), strconv.Itoa(plan.Foreground.OffsetY)
}
