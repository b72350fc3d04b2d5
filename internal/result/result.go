// Package result holds the two-variant outcome returned by asynchronous data
// operations.
package result

import "errors"

// ErrUnset is the cause reported by a zero Result.
var ErrUnset = errors.New("result: unset")

// Result is either a success carrying a value or an error carrying a cause.
// Build one with Success or Error; consume it with Match or Unpack.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Error returns a failed Result. A nil cause is replaced by ErrUnset so that
// a failure always carries a cause.
func Error[T any](cause error) Result[T] {
	if cause == nil {
		cause = ErrUnset
	}
	return Result[T]{err: cause}
}

func (r Result[T]) IsSuccess() bool {
	return r.ok
}

// Unpack returns the value and a nil error on success, or the zero value and
// the cause on failure.
func (r Result[T]) Unpack() (T, error) {
	if r.ok {
		return r.value, nil
	}
	var zero T
	if r.err == nil {
		return zero, ErrUnset
	}
	return zero, r.err
}

// Match calls exactly one of the two functions.
func Match[T, R any](r Result[T], onSuccess func(T) R, onError func(error) R) R {
	v, err := r.Unpack()
	if err != nil {
		return onError(err)
	}
	return onSuccess(v)
}
