package engine

import "errors"

var (
	// ErrTimestampMismatch is returned when a caller submits an order or
	// close request stamped with anything other than the engine's current
	// timestamp.
	ErrTimestampMismatch = errors.New("engine: timestamp does not match current simulation timestamp")

	// ErrUserNotFound is returned by any per-user operation against an
	// unregistered user id.
	ErrUserNotFound = errors.New("engine: user not registered")

	// ErrUserAlreadyRegistered is returned by RegisterUser when user_id is
	// already present.
	ErrUserAlreadyRegistered = errors.New("engine: user already registered")
)
