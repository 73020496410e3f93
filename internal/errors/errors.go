package errors

import "errors"

// This package defines a centralized set of sentinel errors for the
// application. Services return these without knowing about HTTP; the API
// layer maps them to status codes with errors.Is().

var (
	// ErrNotFound signifies that a requested resource could not be located.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that client input failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyMessage signifies a blank submission. It leaves no persisted
	// trace; the API layer rejects it without touching the conversation.
	ErrEmptyMessage = errors.New("empty message")

	// ErrBusy signifies that a generation is already in flight for the
	// conversation. At most one generation runs per conversation.
	ErrBusy = errors.New("generation in flight")

	// ErrMessageLimit signifies that the free-tier message allowance for the
	// active chat group is exhausted and no valid entitlement is present.
	// Surfaced as a blocking dialog client-side, never as a chat message.
	ErrMessageLimit = errors.New("message limit reached")

	// ErrInternal signifies an unexpected server-side failure.
	ErrInternal = errors.New("internal server error")
)
