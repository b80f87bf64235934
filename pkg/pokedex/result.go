package pokedex

// Status tells how a result was produced.
type Status string

const (
	// StatusFresh means the value was rebuilt by this call.
	StatusFresh Status = "fresh"

	// StatusCached means the value came from an unexpired cache entry.
	StatusCached Status = "cached"

	// StatusStale means the entry had expired and another holder is rebuilding it.
	StatusStale Status = "stale"

	// StatusRebuilding means no value exists yet and a rebuild is in flight.
	// Value is the zero value.
	StatusRebuilding Status = "rebuilding"
)

// Result is a value tagged with how it was obtained.
type Result[T any] struct {
	Value  T
	Status Status
}

// Rebuilding reports whether the result carries no value because a rebuild is running.
func (r Result[T]) Rebuilding() bool {
	return r.Status == StatusRebuilding
}
