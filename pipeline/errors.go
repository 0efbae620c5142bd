package pipeline

import "errors"

var (
	ErrConfigInvalid   = errors.New("pipeline: invalid configuration")
	ErrNoFreeInputSlot = errors.New("pipeline: no free input slot")
	ErrDeviceError     = errors.New("pipeline: device error, reset required")
	ErrEmptyAccessUnit = errors.New("pipeline: access unit is empty")
)
