package tracker

import "errors"

var (
	// ErrUnsupportedAspectRatio is returned for targets outside 9:16, 1:1, 16:9.
	ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")

	// ErrInvalidClip is returned when duration or frame size is not positive.
	ErrInvalidClip = errors.New("invalid clip metadata")

	// ErrSourceUnreadable marks a source that cannot be opened or probed at all.
	ErrSourceUnreadable = errors.New("source video unreadable")
)
