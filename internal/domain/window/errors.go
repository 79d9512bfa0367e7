package window

import "errors"

// Sentinel kinds for window generation errors.
var (
	ErrInvalidWindowCount  = errors.New("invalid window count")
	ErrWindowCountTooLarge = errors.New("window count above the configured maximum")
	ErrInvalidAnchor       = errors.New("invalid anchor date")
	ErrInvalidLabel        = errors.New("invalid window label")
)
