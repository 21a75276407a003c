package registry

import "errors"

var (
	// ErrUnknownSession is returned when an operation references an id not
	// currently present in the Registry.
	ErrUnknownSession = errors.New("registry: unknown session")

	// ErrAlreadyRegistered guards the "exactly one session per id" invariant.
	ErrAlreadyRegistered = errors.New("registry: session already registered")
)
