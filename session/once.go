package session

// WriteOnce holds a value that is either unset or set exactly once.
type WriteOnce[T any] struct {
	v   T
	set bool
}

// Get returns the value and whether it has been set.
func (w WriteOnce[T]) Get() (T, bool) {
	return w.v, w.set
}

// IsSet reports whether Set has succeeded.
func (w WriteOnce[T]) IsSet() bool {
	return w.set
}

// Set stores v. It returns ErrAlreadyAssigned, leaving the old value, if a
// value was stored before.
func (w *WriteOnce[T]) Set(v T) error {
	if w.set {
		return ErrAlreadyAssigned
	}
	w.v = v
	w.set = true
	return nil
}
