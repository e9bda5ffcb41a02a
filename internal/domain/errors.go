package domain

import "errors"

// Sentinel errors returned by the grid engines. Callers match them with
// errors.Is; the returned errors wrap them with the offending dimension or name.
var (
	// ErrShapeMismatch reports grids, masks or references that disagree in
	// (time, lat, lon) shape or coordinate values.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrMissingVariable reports an expected variable or dimension absent from an input.
	ErrMissingVariable = errors.New("missing variable")

	// ErrIndexOutOfRange reports a representative time index that does not exist.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMissingYear reports an ensemble member without data for a requested year.
	ErrMissingYear = errors.New("missing year")

	// ErrInsufficientData reports a trend fit with fewer than two usable points.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidArgument reports out-of-domain parameters such as a quantile outside [0, 1].
	ErrInvalidArgument = errors.New("invalid argument")
)
