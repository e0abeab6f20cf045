package session

import "errors"

// ErrInvalidTransition is returned when a status change would move the
// lifecycle backwards.
var ErrInvalidTransition = errors.New("invalid session status transition")
