// Package foundation provides small generic helpers shared across the pipeline packages.
package foundation

import "fmt"

// Option represents a value that may or may not be present.
//
// It is used where "nothing to do" is a legitimate outcome distinct from an
// error, e.g. a branch event that no classification rule applies to.
type Option[T any] struct {
	value   T
	present bool
}

// Some creates an Option holding value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, present: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome reports whether the Option holds a value.
func (o Option[T]) IsSome() bool { return o.present }

// IsNone reports whether the Option is empty.
func (o Option[T]) IsNone() bool { return !o.present }

// Get returns the value and whether it was present.
func (o Option[T]) Get() (T, bool) { return o.value, o.present }

// Unwrap returns the value, panicking on None.
func (o Option[T]) Unwrap() T {
	if !o.present {
		panic("foundation: Unwrap called on None")
	}
	return o.value
}

func (o Option[T]) String() string {
	if o.present {
		return fmt.Sprintf("Some(%v)", o.value)
	}
	return "None"
}
