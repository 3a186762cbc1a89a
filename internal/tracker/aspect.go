package tracker

import (
	"fmt"
	"strings"
)

// AspectRatio is one of the supported output shapes.
type AspectRatio string

const (
	Vertical   AspectRatio = "9:16"
	Square     AspectRatio = "1:1"
	Horizontal AspectRatio = "16:9"
)

// ParseAspectRatio accepts exactly "9:16", "1:1" or "16:9".
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch r := AspectRatio(strings.TrimSpace(s)); r {
	case Vertical, Square, Horizontal:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, s)
}

// Value returns width divided by height.
func (a AspectRatio) Value() float64 {
	switch a {
	case Vertical:
		return 9.0 / 16.0
	case Square:
		return 1.0
	case Horizontal:
		return 16.0 / 9.0
	}
	return 0
}

// AllowsLetterbox reports whether the letterbox decision is evaluated for
// this ratio. Only targets that are not wider than tall qualify.
func (a AspectRatio) AllowsLetterbox() bool {
	return a == Vertical || a == Square
}

func (a AspectRatio) valid() bool {
	return a.Value() > 0
}

// Resolution names an output quality tier.
type Resolution string

const (
	Res4K    Resolution = "4K"
	Res1080p Resolution = "1080p"
	Res720p  Resolution = "720p"
	Res480p  Resolution = "480p"
)

// DefaultResolution is used when callers leave the resolution empty.
const DefaultResolution = Res1080p

var outputSizes = map[Resolution]map[AspectRatio]Size{
	Res4K: {
		Vertical:   {Width: 2160, Height: 3840},
		Horizontal: {Width: 3840, Height: 2160},
		Square:     {Width: 2160, Height: 2160},
	},
	Res1080p: {
		Vertical:   {Width: 1080, Height: 1920},
		Horizontal: {Width: 1920, Height: 1080},
		Square:     {Width: 1080, Height: 1080},
	},
	Res720p: {
		Vertical:   {Width: 720, Height: 1280},
		Horizontal: {Width: 1280, Height: 720},
		Square:     {Width: 720, Height: 720},
	},
	Res480p: {
		Vertical:   {Width: 480, Height: 854},
		Horizontal: {Width: 854, Height: 480},
		Square:     {Width: 480, Height: 480},
	},
}

// ParseResolution accepts "4K", "1080p", "720p" or "480p" (case-insensitive).
// An empty string selects DefaultResolution.
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultResolution, nil
	}
	for r := range outputSizes {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unsupported resolution %q", s)
}

// OutputSize returns the rendered frame size for a ratio at a resolution.
func OutputSize(res Resolution, ratio AspectRatio) (Size, error) {
	byRatio, ok := outputSizes[res]
	if !ok {
		return Size{}, fmt.Errorf("unsupported resolution %q", res)
	}
	size, ok := byRatio[ratio]
	if !ok {
		return Size{}, fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, ratio)
	}
	return size, nil
}
