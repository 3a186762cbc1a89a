package ffmpeg

import (
	"time"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	Rotation     int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
}

// Clip returns the tracker view of the video. Sources rotated by 90 degrees
// are decoded upright, so their dimensions are swapped.
func (v *VideoInfo) Clip() tracker.Clip {
	w, h := v.Width, v.Height
	if v.Rotation == 90 || v.Rotation == 270 {
		w, h = h, w
	}
	return tracker.Clip{Duration: v.Duration.Seconds(), Width: w, Height: h}
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame         int
	FPS           float64
	Bitrate       string
	Time          string
	OutTimeMicros int64
	Speed         string
	Percentage    float64
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF          = 18
	DefaultPreset       = "medium"
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
)

// ProgressFunc is a callback for progress updates during ffmpeg operations.
type ProgressFunc func(*Progress)
