package graph

import (
	"errors"
	"fmt"

	"github.com/podgraph/backend/pkg/store"
)

var (
	// ErrInput is the parent of all caller input errors. It is never retried.
	ErrInput = errors.New("invalid input")
	// ErrNotFound is returned when a referenced node, podcast or job does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrOwnership is returned when an entity belongs to a different user.
	ErrOwnership = store.ErrOwnership
	// ErrUpstream wraps failures of the embedding or generation model.
	ErrUpstream = errors.New("upstream model failure")
	// ErrInsufficientContext signals that no node was close enough to a
	// question. It is a defined outcome, not a failure.
	ErrInsufficientContext = errors.New("insufficient context")
)

var (
	ErrLengthMismatch = inputError("vectors must have the same length")
	ErrZeroVector     = inputError("vector has zero magnitude")
	ErrMissingField   = inputError("missing required field")
	ErrNoIdeas        = inputError("no ideas found in transcript")
)

type wrappedInput struct {
	msg string
}

func inputError(msg string) error {
	return &wrappedInput{msg: msg}
}

func (e *wrappedInput) Error() string { return e.msg }

func (e *wrappedInput) Unwrap() error { return ErrInput }

// upstreamError marks err as a model failure while keeping it inspectable.
func upstreamError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
