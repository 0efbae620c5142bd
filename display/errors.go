package display

import "errors"

var (
	// ErrDeviceUnavailable means no mode-setting device path could be opened
	// or resource enumeration failed on every path tried.
	ErrDeviceUnavailable = errors.New("display: no mode-setting device available")

	// ErrNoConnector means no connected output with at least one mode was found.
	ErrNoConnector = errors.New("display: no connected output found")

	// ErrNoEncoder means no encoder could be bound to the chosen connector.
	ErrNoEncoder = errors.New("display: no usable encoder found")

	// ErrNoCRTC means no CRTC could be acquired for the chosen encoder.
	ErrNoCRTC = errors.New("display: no usable CRTC found")

	// ErrImportFailed covers prime_fd_to_handle or add-framebuffer failures
	// (spec.md's DisplayImportFailed error kind).
	ErrImportFailed = errors.New("display: buffer import failed")

	// ErrPresentFailed covers mode-set/page-flip failures (spec.md's
	// DisplayPresentFailed error kind).
	ErrPresentFailed = errors.New("display: present failed")

	// ErrInvalidFrame means the frame descriptor failed display-side validation
	// (negative fd, zero/oversized dimensions) before any kernel call was made.
	ErrInvalidFrame = errors.New("display: invalid frame descriptor")
)
