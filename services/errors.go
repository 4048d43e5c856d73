package services

import (
	"errors"
	"fmt"

	"wallet-trust-system/metrics"
	"wallet-trust-system/models"
	"wallet-trust-system/repository"
)

// Error kinds returned by the wallet core. Wrap with %w and match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// storeErr maps repository and model errors onto core error kinds.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrStaleRecord):
		metrics.ConcurrentUpdateConflicts.Inc()
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, models.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case errors.Is(err, models.ErrInvalidRecord):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
