package domain

import "github.com/pkg/errors"

var (
	// ErrDuplicateInstance is returned when a saga instance already exists for
	// a correlation ID. A replayed trigger is treated as already-created.
	ErrDuplicateInstance = errors.New("saga instance already exists")

	// ErrSagaNotFound is returned when no instance matches a correlation ID.
	ErrSagaNotFound = errors.New("saga instance not found")

	// ErrUnroutableEvent is returned when an inbound event cannot be matched
	// to a known saga instance. Likely a duplicate or late delivery for an
	// archived instance: log and drop.
	ErrUnroutableEvent = errors.New("event does not route to a known saga instance")

	// ErrConcurrencyConflict is returned when an optimistic-concurrency update
	// lost against a concurrent writer. The caller must re-read and retry.
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// ErrAlreadyTerminal is returned when a finalization would move an
	// instance from one terminal phase to a different one.
	ErrAlreadyTerminal = errors.New("saga instance already finalized")

	// ErrUnknownStep is returned for a step ID outside the instance's
	// fanned-out step set.
	ErrUnknownStep = errors.New("unknown saga step")
)
