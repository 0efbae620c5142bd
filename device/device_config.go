package device

import "github.com/rs/zerolog"

// config holds device configuration parameters, populated by functional
// options at Open time.
type config struct {
	inputPlaneSize  uint32 // minimum bitstream plane size, bytes (default 2 MiB)
	outputPlaneSize uint32 // minimum decoded-picture plane size, bytes (0 = derive from w*h*3/2)
	logger          zerolog.Logger
}

// Option configures a Device at Open time (mirrors the teacher's
// device_config.go functional-options pattern).
type Option func(*config)

// WithInputPlaneSize overrides the minimum bitstream input plane size.
func WithInputPlaneSize(size uint32) Option {
	return func(c *config) { c.inputPlaneSize = size }
}

// WithOutputPlaneSize overrides the minimum decoded-picture output plane
// size. Zero (the default) derives it from the negotiated w*h*3/2 for
// planar 4:2:0.
func WithOutputPlaneSize(size uint32) Option {
	return func(c *config) { c.outputPlaneSize = size }
}
