package registry

import "fmt"

type Status int

const (
	// StatusOK means Value holds the parsed record.
	StatusOK Status = iota
	// StatusUnavailable means the record could not be fetched, callers
	// render it as absent and carry on.
	StatusUnavailable
	// StatusFatal means the upstream cannot be used at all.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusFatal:
		return "fatal"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of one registry call. Reason is set whenever Status
// is not StatusOK.
type Result[T any] struct {
	Status Status
	Value  T
	Reason error
}

func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// Get returns the value and whether it is usable.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Status == StatusOK
}

func ok[T any](value T) Result[T] {
	return Result[T]{Status: StatusOK, Value: value}
}

func unavailable[T any](reason error) Result[T] {
	return Result[T]{Status: StatusUnavailable, Reason: reason}
}

func fatal[T any](reason error) Result[T] {
	return Result[T]{Status: StatusFatal, Reason: reason}
}
