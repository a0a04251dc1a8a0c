package door

import "errors"

var (
	// ErrNotFound is returned when the door row is missing.
	ErrNotFound = errors.New("door not found")

	// ErrConflict is returned when the stored state changed underneath a toggle.
	ErrConflict = errors.New("door state changed concurrently")

	// ErrPersistence is returned when the new state could not be written.
	ErrPersistence = errors.New("door state not persisted")

	// ErrActuator is returned when the servo could not be driven.
	ErrActuator = errors.New("door actuator failed")

	// ErrInvalidState is returned for a state other than open or close.
	ErrInvalidState = errors.New("invalid door state")

	// ErrInvalidButton is returned for a doorbell payload other than "pushed".
	ErrInvalidButton = errors.New("invalid doorbell button")
)
