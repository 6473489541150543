package fec

import "errors"

var (
	// ErrConfiguration is returned when a code, metric or puncture pattern
	// cannot be built from the parameters given.
	ErrConfiguration = errors.New("fec: configuration error")

	// ErrInvalidInput is returned when bits, states or received symbols are
	// malformed. Calls that return it produce no output.
	ErrInvalidInput = errors.New("fec: invalid input")
)
