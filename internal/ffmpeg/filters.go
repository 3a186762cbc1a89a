package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// skip without breaking the chain
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleCover scales so the frame covers width x height, keeping aspect.
func (fb *FilterBuilder) ScaleCover(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height))
	return fb
}

// Crop adds a crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// CropCenter crops width x height from the middle of the frame.
func (fb *FilterBuilder) CropCenter(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d", width, height))
	return fb
}

// GBlur adds a gaussian blur
func (fb *FilterBuilder) GBlur(sigma float64) *FilterBuilder {
	if sigma <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, "gblur=sigma="+strconv.FormatFloat(sigma, 'f', -1, 64))
	return fb
}

// Overlay places the second input at x:y expressions.
func (fb *FilterBuilder) Overlay(x, y string) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("overlay=%s:%s", x, y))
	return fb
}

// SetAspect pins square pixels and the display aspect of the output.
func (fb *FilterBuilder) SetAspect(width, height int) *FilterBuilder {
	fb.filters = append(fb.filters, "setsar=1")
	if width > 0 && height > 0 {
		fb.filters = append(fb.filters, fmt.Sprintf("setdar=%d/%d", width, height))
	}
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// BuildAll returns all filters as a slice
func (fb *FilterBuilder) BuildAll() []string {
	return fb.filters
}

// FilterGraph joins labeled chains into a -filter_complex description.
type FilterGraph struct {
	chains []string
}

// Chain appends "[in...]chain[out]". Empty chains are skipped.
func (g *FilterGraph) Chain(inputs []string, fb *FilterBuilder, output string) *FilterGraph {
	body := fb.Build()
	if body == "" {
		return g
	}
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString("[" + in + "]")
	}
	sb.WriteString(body)
	if output != "" {
		sb.WriteString("[" + output + "]")
	}
	g.chains = append(g.chains, sb.String())
	return g
}

// Build returns the chains separated by semicolons.
func (g *FilterGraph) Build() string {
	return strings.Join(g.chains, ";")
}
