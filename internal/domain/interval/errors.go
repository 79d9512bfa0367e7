package interval

import "errors"

// ErrInvalidInterval is returned when a range starts after it ends.
var ErrInvalidInterval = errors.New("invalid interval")
