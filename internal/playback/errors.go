package playback

import "errors"

var (
	// ErrOutOfRange is returned by Seek for a frame outside [0, length).
	ErrOutOfRange = errors.New("frame out of range")
	// ErrInvalidSpeed is returned by SetSpeed for a non-positive or non-finite multiplier.
	ErrInvalidSpeed = errors.New("invalid speed multiplier")
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("playback controller closed")
)
