package tracker

// Thresholds control the multi-subject letterbox decision.
type Thresholds struct {
	// AspectTrigger is the minimum width/height of a sample's subject span.
	AspectTrigger float64 `json:"aspect_trigger" yaml:"aspect_trigger"`
	// SeparationTrigger is the minimum span width as a fraction of frame width.
	SeparationTrigger float64 `json:"separation_trigger" yaml:"separation_trigger"`
	// Quorum is the minimum fraction of samples that must trigger.
	Quorum float64 `json:"quorum" yaml:"quorum"`
	// MinAverageSubjects is the minimum mean detections per sample.
	MinAverageSubjects float64 `json:"min_average_subjects" yaml:"min_average_subjects"`
}

// DefaultThresholds returns the strict values; the looser historical ones
// (aspect 1.2, no separation check) are not supported.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AspectTrigger:      1.5,
		SeparationTrigger:  0.4,
		Quorum:             0.6,
		MinAverageSubjects: 2.0,
	}
}

// Stats summarizes a sampling pass.
type Stats struct {
	Samples             int     `json:"samples" yaml:"samples"`
	DroppedSamples      int     `json:"dropped_samples" yaml:"dropped_samples"`
	Detections          int     `json:"detections" yaml:"detections"`
	TriggeringSamples   int     `json:"triggering_samples" yaml:"triggering_samples"`
	AverageSubjectCount float64 `json:"average_subject_count" yaml:"average_subject_count"`
	TriggerFraction     float64 `json:"trigger_fraction" yaml:"trigger_fraction"`
}

// Aggregation is the order-independent summary of all samples of a clip.
type Aggregation struct {
	Stats Stats

	// Focus is the mean of per-sample weighted centroids. Valid only when
	// HasFocus is set; otherwise callers fall back to the frame center.
	Focus    Point
	HasFocus bool

	// SpanCenter is the mean center of the subject spans of triggering
	// samples. Valid only when TriggeringSamples > 0.
	SpanCenter Point

	// Letterbox is set when at least one sample triggers and both the
	// subject-count and quorum conditions hold. It does not account for the
	// target aspect ratio.
	Letterbox bool
}

// Aggregate folds frame samples into a focus point and the multi-subject
// statistics used by the letterbox rule. Samples are visited in slice order
// so the floating point result is reproducible.
func Aggregate(samples []FrameSample, frame Size, th Thresholds) Aggregation {
	var agg Aggregation
	var sumX, sumY, spanSumX, spanSumY float64
	centroids := 0
	frameWidth := float64(frame.Width)

	agg.Stats.Samples = len(samples)
	for _, s := range samples {
		if s.Dropped {
			agg.Stats.DroppedSamples++
		}
		agg.Stats.Detections += len(s.Detections)

		if c, ok := localCentroid(s.Detections); ok {
			sumX += c.X
			sumY += c.Y
			centroids++
		}

		if len(s.Detections) < 2 {
			continue
		}
		span := s.Detections[0].Box
		for _, d := range s.Detections[1:] {
			span = span.Union(d.Box)
		}
		if span.Height <= 0 || frameWidth <= 0 {
			continue
		}
		groupAspect := span.Width / span.Height
		separation := span.Width / frameWidth
		if groupAspect > th.AspectTrigger && separation > th.SeparationTrigger {
			agg.Stats.TriggeringSamples++
			c := span.Center()
			spanSumX += c.X
			spanSumY += c.Y
		}
	}

	if centroids > 0 {
		agg.Focus = Point{X: sumX / float64(centroids), Y: sumY / float64(centroids)}
		agg.HasFocus = true
	}
	if agg.Stats.TriggeringSamples > 0 {
		n := float64(agg.Stats.TriggeringSamples)
		agg.SpanCenter = Point{X: spanSumX / n, Y: spanSumY / n}
	}
	if agg.Stats.Samples > 0 {
		n := float64(agg.Stats.Samples)
		agg.Stats.AverageSubjectCount = float64(agg.Stats.Detections) / n
		agg.Stats.TriggerFraction = float64(agg.Stats.TriggeringSamples) / n
	}

	// A triggering sample has two or more subjects, so zero-valued thresholds
	// still cannot letterbox an empty or single-subject clip.
	agg.Letterbox = agg.Stats.TriggeringSamples > 0 &&
		agg.Stats.AverageSubjectCount >= th.MinAverageSubjects &&
		agg.Stats.TriggerFraction >= th.Quorum
	return agg
}

// localCentroid is the confidence-weighted mean of detection centers.
func localCentroid(dets []Detection) (Point, bool) {
	var sx, sy, sw float64
	for _, d := range dets {
		w := d.Weight()
		c := d.Box.Center()
		sx += c.X * w
		sy += c.Y * w
		sw += w
	}
	if sw <= 0 {
		return Point{}, false
	}
	return Point{X: sx / sw, Y: sy / sw}, true
}
