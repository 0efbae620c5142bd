package present

import "errors"

var (
	// ErrInvalidBuffer covers index-out-of-range, missing fd, or missing
	// CPU mapping on a dequeued output buffer.
	ErrInvalidBuffer = errors.New("present: invalid output buffer")

	// ErrDecoderRejected is set when the driver marks a buffer with its
	// per-buffer error flag (spec.md §7's DecoderRejected kind).
	ErrDecoderRejected = errors.New("present: decoder rejected buffer")

	// ErrBufferTooSmall means bytes_used fell below the 4:2:0 size floor.
	ErrBufferTooSmall = errors.New("present: buffer too small")

	// ErrBufferUntouched means the content-liveness heuristic found only
	// sentinel pre-paint bytes — the decoder has not written this slot yet.
	ErrBufferUntouched = errors.New("present: buffer untouched")
)
