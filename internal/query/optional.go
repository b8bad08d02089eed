package query

// Optional holds a value that may or may not have been supplied. The zero
// value is absent, so a present zero stays distinguishable from "not given".
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether a value was supplied.
func (o Optional[T]) Present() bool {
	return o.present
}
