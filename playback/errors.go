package playback

import "errors"

var (
	ErrAlreadyRunning = errors.New("playback: loop already running")
	ErrNotRunning     = errors.New("playback: loop is not running")
)
