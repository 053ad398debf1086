package opt

import "errors"

var (
	// ErrMalformed reports input that breaks a caller contract, such as a
	// chromosome without depot genes or a route with fewer than two stops.
	ErrMalformed = errors.New("opt: malformed input")
	// ErrInvariant reports an internal state that should be unreachable.
	ErrInvariant = errors.New("opt: invariant violated")
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("opt: invalid params")
)
