package tracker

import (
	"math"
	"testing"
)

func TestLocalCentroidWeights(t *testing.T) {
	dets := []Detection{
		{Box: Rect{X: 0, Y: 0, Width: 100, Height: 100}, Kind: FrontalFace},
		{Box: Rect{X: 900, Y: 0, Width: 100, Height: 100}, Kind: UpperBody},
	}
	c, ok := localCentroid(dets)
	if !ok {
		t.Fatal("no centroid")
	}
	// (50*1.0 + 950*0.5) / 1.5
	if want := 350.0; math.Abs(c.X-want) > 1e-9 || c.Y != 50 {
		t.Errorf("centroid = %+v, want (%v, 50)", c, want)
	}
	if _, ok := localCentroid(nil); ok {
		t.Error("empty sample produced a centroid")
	}
}

func TestAggregateTemporalMean(t *testing.T) {
	// one sample with many detections must not outweigh others
	samples := []FrameSample{
		{Detections: []Detection{face(0, 0, 100), face(0, 0, 100), face(0, 0, 100)}},
		{Detections: []Detection{face(900, 0, 100)}},
		{},
	}
	agg := Aggregate(samples, Size{Width: 1920, Height: 1080}, DefaultThresholds())
	if !agg.HasFocus {
		t.Fatal("expected a focus point")
	}
	if agg.Focus.X != 500 || agg.Focus.Y != 50 {
		t.Errorf("focus = %+v, want (500, 50)", agg.Focus)
	}
	if agg.Stats.Samples != 3 || agg.Stats.Detections != 4 {
		t.Errorf("stats = %+v", agg.Stats)
	}
	if math.Abs(agg.Stats.AverageSubjectCount-4.0/3.0) > 1e-12 {
		t.Errorf("average = %v", agg.Stats.AverageSubjectCount)
	}
}

func TestAggregateDroppedSamplesCountTowardsAverage(t *testing.T) {
	samples := []FrameSample{
		{Detections: twoSubjects()},
		{Detections: twoSubjects()},
		{Dropped: true},
	}
	agg := Aggregate(samples, Size{Width: 1920, Height: 1080}, DefaultThresholds())
	if agg.Stats.DroppedSamples != 1 {
		t.Errorf("dropped = %d", agg.Stats.DroppedSamples)
	}
	if agg.Letterbox {
		t.Errorf("average %v below 2.0 must not letterbox", agg.Stats.AverageSubjectCount)
	}
}

func TestAggregateTriggerConditions(t *testing.T) {
	frame := Size{Width: 1920, Height: 1080}
	tests := []struct {
		name    string
		dets    []Detection
		trigger bool
	}{
		{"wide and separated", twoSubjects(), true},
		{"wide but close", closePair(), false},
		{"separated but tall span", []Detection{face(500, 0, 300), face(1100, 700, 300)}, false},
		{"single detection", []Detection{face(100, 100, 100)}, false},
		// aspect exactly 1.5 is not strictly greater
		{"aspect on threshold", []Detection{face(0, 0, 100), {Box: Rect{X: 1000, Y: 0, Width: 200, Height: 800}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Aggregate([]FrameSample{{Detections: tt.dets}}, frame, DefaultThresholds())
			if got := agg.Stats.TriggeringSamples == 1; got != tt.trigger {
				t.Errorf("trigger = %v, want %v", got, tt.trigger)
			}
		})
	}
}

func TestAggregateSpanCenter(t *testing.T) {
	samples := []FrameSample{
		{Detections: twoSubjects()},
		{Detections: twoSubjects()},
	}
	agg := Aggregate(samples, Size{Width: 1920, Height: 1080}, DefaultThresholds())
	if !agg.Letterbox {
		t.Fatalf("expected letterbox, stats %+v", agg.Stats)
	}
	// union spans 300..1500 x 200..800
	if agg.SpanCenter != (Point{X: 900, Y: 500}) {
		t.Errorf("span center = %+v", agg.SpanCenter)
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, Size{Width: 1920, Height: 1080}, DefaultThresholds())
	if agg.HasFocus || agg.Letterbox || agg.Stats.Samples != 0 {
		t.Errorf("unexpected aggregation %+v", agg)
	}
}

func TestAggregateNeedsTriggeringSample(t *testing.T) {
	samples := []FrameSample{{}, {}, {Detections: []Detection{face(100, 100, 100)}}}
	agg := Aggregate(samples, Size{Width: 1920, Height: 1080}, Thresholds{})
	if agg.Letterbox {
		t.Errorf("zero thresholds without a triggering sample must not letterbox: %+v", agg.Stats)
	}
}
