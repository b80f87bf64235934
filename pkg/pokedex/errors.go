package pokedex

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/pokedex-api/pkg/pokeapi"
)

// Error kinds returned by the Aggregator. The API layer maps each kind to an
// HTTP status; nothing else in this package knows about HTTP.
var (
	// ErrNotFound means the entity does not exist. Never cached.
	ErrNotFound = errors.New("not found")

	// ErrTransient means the upstream failed in a retryable way. Never cached.
	ErrTransient = errors.New("upstream temporarily unavailable")

	// ErrPermanent means the upstream rejected the request in a way that will
	// not resolve by retrying. Cached briefly as a negative entry.
	ErrPermanent = errors.New("upstream failed permanently")

	// ErrInvalidInput means a malformed key or parameter.
	ErrInvalidInput = errors.New("invalid input")
)

// kindOf translates an error into one of the error kinds.
// Anything unclassified, including cancellation, counts as transient.
func kindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, pokeapi.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrPermanent), errors.Is(err, pokeapi.ErrPermanent):
		return ErrPermanent
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	default:
		return ErrTransient
	}
}

// classify wraps err so that it matches its error kind with errors.Is while
// keeping the upstream message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	kind := kindOf(err)
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
