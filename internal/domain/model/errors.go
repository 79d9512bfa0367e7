package model

import "errors"

// ErrInvalidStatus is returned for an unknown project status.
var ErrInvalidStatus = errors.New("invalid project status")
