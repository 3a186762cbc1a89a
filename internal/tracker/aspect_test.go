package tracker

import (
	"errors"
	"testing"
)

func TestParseAspectRatio(t *testing.T) {
	for _, s := range []string{"9:16", "1:1", "16:9", " 9:16 "} {
		if _, err := ParseAspectRatio(s); err != nil {
			t.Errorf("ParseAspectRatio(%q) failed: %v", s, err)
		}
	}
	for _, s := range []string{"", "4:3", "16x9", "9/16"} {
		if _, err := ParseAspectRatio(s); !errors.Is(err, ErrUnsupportedAspectRatio) {
			t.Errorf("ParseAspectRatio(%q) = %v, want ErrUnsupportedAspectRatio", s, err)
		}
	}
}

func TestAllowsLetterbox(t *testing.T) {
	if !Vertical.AllowsLetterbox() || !Square.AllowsLetterbox() {
		t.Error("vertical and square targets must allow letterbox")
	}
	if Horizontal.AllowsLetterbox() {
		t.Error("horizontal target must not allow letterbox")
	}
}

func TestOutputSize(t *testing.T) {
	tests := []struct {
		res   string
		ratio AspectRatio
		want  Size
	}{
		{"4K", Vertical, Size{2160, 3840}},
		{"4k", Square, Size{2160, 2160}},
		{"1080p", Horizontal, Size{1920, 1080}},
		{"", Vertical, Size{1080, 1920}},
		{"720p", Square, Size{720, 720}},
		{"480P", Vertical, Size{480, 854}},
		{"480p", Horizontal, Size{854, 480}},
	}
	for _, tt := range tests {
		res, err := ParseResolution(tt.res)
		if err != nil {
			t.Fatalf("ParseResolution(%q): %v", tt.res, err)
		}
		got, err := OutputSize(res, tt.ratio)
		if err != nil {
			t.Fatalf("OutputSize(%s, %s): %v", res, tt.ratio, err)
		}
		if got != tt.want {
			t.Errorf("OutputSize(%s, %s) = %v, want %v", res, tt.ratio, got, tt.want)
		}
	}

	if _, err := ParseResolution("8K"); err == nil {
		t.Error("8K accepted")
	}
}

func TestKindWeights(t *testing.T) {
	tests := []struct {
		kind   Kind
		weight float64
		name   string
	}{
		{FrontalFace, 1.0, "frontal"},
		{ProfileFace, 0.8, "profile"},
		{UpperBody, 0.5, "body"},
	}
	for _, tt := range tests {
		if got := tt.kind.Weight(); got != tt.weight {
			t.Errorf("%s weight = %v, want %v", tt.name, got, tt.weight)
		}
		parsed, err := ParseKind(tt.name)
		if err != nil || parsed != tt.kind {
			t.Errorf("ParseKind(%q) = %v, %v", tt.name, parsed, err)
		}
	}
	if Kind(9).Weight() != 0 {
		t.Error("unknown kind has a weight")
	}
	if _, err := ParseKind("torso"); err == nil {
		t.Error("unknown kind name accepted")
	}
}
