package report

// Section is a report block whose presence is decided once, when the view
// is built. Templates test Present instead of probing nested data.
type Section[T any] struct {
	value   T
	present bool
}

// Present wraps a value that will be rendered.
func Present[T any](v T) Section[T] {
	return Section[T]{value: v, present: true}
}

// Absent is a section that renders its fallback message.
func Absent[T any]() Section[T] {
	return Section[T]{}
}

// Present reports whether the section has data.
func (s Section[T]) Present() bool { return s.present }

// Value returns the wrapped value, or the zero value when absent.
func (s Section[T]) Value() T { return s.value }

// Get returns the value and whether it is present.
func (s Section[T]) Get() (T, bool) { return s.value, s.present }

// presentIf returns Present(v) when ok, else Absent.
func presentIf[T any](v T, ok bool) Section[T] {
	if !ok {
		return Absent[T]()
	}
	return Present(v)
}
