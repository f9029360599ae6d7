// Package errors provides error composition helpers used throughout the
// solver so that a caller can both errors.Is a sentinel and read a
// human-readable, call-specific message.
package errors

import (
	"errors"
	reflectlite "reflect"
)

// With returns an error that represents top wrapped on top of base. Both
// errors.Is and errors.As against either error continue to work.
func With(base, top error) error {
	if base == nil && top == nil {
		return nil
	}
	if top == nil {
		return base
	}
	if base == nil {
		return top
	}
	return union{error: base, top: top}
}

type union struct {
	error
	top error
}

func (u union) Is(target error) bool {
	if target == nil {
		return false
	}

	isComparable := reflectlite.TypeOf(target).Comparable()
	if isComparable && u.top == target {
		return true
	}
	if x, ok := u.top.(interface{ Is(error) bool }); ok && x.Is(target) {
		return true
	}
	return false
}

func (u union) As(target any) bool {
	if target == nil {
		panic("errors: target cannot be nil")
	}
	val := reflectlite.ValueOf(target)
	typ := val.Type()
	if typ.Kind() != reflectlite.Ptr || val.IsNil() {
		panic("errors: target must be a non-nil pointer")
	}
	targetType := typ.Elem()
	if targetType.Kind() != reflectlite.Interface && !targetType.Implements(errorType) {
		panic("errors: *target must be interface or implement error")
	}
	if reflectlite.TypeOf(u.top).AssignableTo(targetType) {
		val.Elem().Set(reflectlite.ValueOf(u.top))
		return true
	}
	if x, ok := u.top.(interface{ As(any) bool }); ok && x.As(target) {
		return true
	}
	return false
}

var errorType = reflectlite.TypeOf((*error)(nil)).Elem()

func (u union) Unwrap() error {
	if err := errors.Unwrap(u.top); err != nil {
		return union{error: u.error, top: err}
	}
	return u.error
}
