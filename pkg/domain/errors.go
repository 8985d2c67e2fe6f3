package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id has no row. Lookups by another key
// leave ID zero and describe the key instead.
type ErrNotFound struct {
	Entity EntityType
	ID     int64
	Key    string
}

func (e ErrNotFound) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s with %s not found", e.Entity, e.Key)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ErrValidation reports a required field or reference missing before a write.
type ErrValidation struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s is required", e.Entity, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Reason)
}

// ErrConcurrencyConflict is returned when another editor holds the row lock.
type ErrConcurrencyConflict struct {
	Entity EntityType
	ID     int64
}

func (e ErrConcurrencyConflict) Error() string {
	return fmt.Sprintf("%s %d is currently locked by another editor", e.Entity, e.ID)
}

// ErrPersistence wraps a store-level failure during a read, write or commit.
type ErrPersistence struct {
	Op  string
	Err error
}

func (e ErrPersistence) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e ErrPersistence) Unwrap() error { return e.Err }

// ErrIntegrityViolation is returned when a delete would orphan dependent rows.
type ErrIntegrityViolation struct {
	Entity    EntityType
	ID        int64
	Dependent EntityType
}

func (e ErrIntegrityViolation) Error() string {
	return fmt.Sprintf("%s %d is still referenced by %s rows", e.Entity, e.ID, e.Dependent)
}

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var target ErrNotFound
	return errors.As(err, &target)
}

// IsValidation reports whether err carries an ErrValidation.
func IsValidation(err error) bool {
	var target ErrValidation
	return errors.As(err, &target)
}

// IsConflict reports whether err carries an ErrConcurrencyConflict.
func IsConflict(err error) bool {
	var target ErrConcurrencyConflict
	return errors.As(err, &target)
}

// IsPersistence reports whether err carries an ErrPersistence.
func IsPersistence(err error) bool {
	var target ErrPersistence
	return errors.As(err, &target)
}

// IsIntegrity reports whether err carries an ErrIntegrityViolation.
func IsIntegrity(err error) bool {
	var target ErrIntegrityViolation
	return errors.As(err, &target)
}
