package tracker

import "math"

// Region is an integer pixel rectangle.
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// CropRegion is the source rectangle to extract and the size to scale it to.
type CropRegion struct {
	Source Region `json:"source" yaml:"source"`
	Output Size   `json:"output" yaml:"output"`
}

// BackgroundSpec describes the blurred fill layer: the full frame scaled to
// cover Output, cropped to Output, then blurred.
type BackgroundSpec struct {
	Output    Size    `json:"output" yaml:"output"`
	BlurSigma float64 `json:"blur_sigma" yaml:"blur_sigma"`
}

// ForegroundSpec describes the sharp layer placed over the background.
type ForegroundSpec struct {
	Source  Region `json:"source" yaml:"source"`
	Output  Size   `json:"output" yaml:"output"`
	OffsetX int    `json:"offset_x" yaml:"offset_x"`
	OffsetY int    `json:"offset_y" yaml:"offset_y"`
}

// AnchorCenter places the foreground in the middle of the background.
const AnchorCenter = "center"

// LetterboxPlan is a two-layer composite: blurred background plus overlay.
type LetterboxPlan struct {
	Background    BackgroundSpec `json:"background" yaml:"background"`
	Foreground    ForegroundSpec `json:"foreground" yaml:"foreground"`
	OverlayAnchor string         `json:"overlay_anchor" yaml:"overlay_anchor"`
}

// letterboxRatio is the wide aspect used for the multi-subject foreground.
const letterboxRatio = 16.0 / 9.0

// fitRatio returns the largest even-sized rectangle of ratio r (w/h) that
// fits inside frame.
func fitRatio(frame Size, r float64) (int, int) {
	fw, fh := float64(frame.Width), float64(frame.Height)
	w := math.Min(fw, fh*r)
	h := w / r
	if h > fh {
		h = fh
		w = h * r
	}
	iw := even(int(math.Floor(w)))
	ih := even(int(math.Floor(h)))
	if iw < 1 {
		iw = 1
	}
	if ih < 1 {
		ih = 1
	}
	return iw, ih
}

// PlanCentered computes the largest crop of the target ratio centred on
// focus and clamped inside the frame on each axis.
func PlanCentered(frame Size, focus Point, ratio AspectRatio, out Size) CropRegion {
	w, h := fitRatio(frame, ratio.Value())
	return CropRegion{
		Source: Region{
			X:      clampOrigin(focus.X, w, frame.Width),
			Y:      clampOrigin(focus.Y, h, frame.Height),
			Width:  w,
			Height: h,
		},
		Output: out,
	}
}

// PlanLetterbox computes the blurred-background composite. The foreground is
// a 16:9 crop centred on center, scaled to the output width and placed in
// the middle of the frame.
func PlanLetterbox(frame Size, center Point, out Size, blurSigma float64) LetterboxPlan {
	w, h := fitRatio(frame, letterboxRatio)
	src := Region{
		X:      clampOrigin(center.X, w, frame.Width),
		Y:      clampOrigin(center.Y, h, frame.Height),
		Width:  w,
		Height: h,
	}

	fgW := out.Width
	fgH := even(int(math.Round(float64(out.Width) * float64(h) / float64(w))))
	if fgH > out.Height {
		fgH = out.Height
		fgW = even(int(math.Round(float64(out.Height) * float64(w) / float64(h))))
	}

	return LetterboxPlan{
		Background: BackgroundSpec{Output: out, BlurSigma: blurSigma},
		Foreground: ForegroundSpec{
			Source:  src,
			Output:  Size{Width: fgW, Height: fgH},
			OffsetX: (out.Width - fgW) / 2,
			OffsetY: (out.Height - fgH) / 2,
		},
		OverlayAnchor: AnchorCenter,
	}
}
