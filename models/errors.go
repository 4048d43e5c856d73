package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned when a record fails validation at the persistence boundary.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidTransition is returned when a lifecycle state change is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
)

func invalidRecord(entity, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRecord, entity, msg)
}
