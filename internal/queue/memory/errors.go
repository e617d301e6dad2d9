package memory

import "errors"

// ErrQueueFull is returned when a destination buffer has no room and the
// context ends before space frees up.
var ErrQueueFull = errors.New("queue is full")
