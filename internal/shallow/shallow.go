// Package shallow implements the one-level equality used to suppress
// redundant state notifications.
package shallow

import (
	"math"
	"reflect"
)

// Equal reports whether a and b are shallowly equal.
//
// Two values are equal when they are identical, or when they are structs
// (or pointers to structs, or maps) whose direct members are pairwise
// identical. Reference kinds (pointer, map, slice, func, chan) are compared
// by identity only; floating point NaN equals NaN.
func Equal(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if identical(va, vb) {
		return true
	}

	switch va.Kind() {
	case reflect.Struct:
		return fieldsEqual(va, vb)
	case reflect.Pointer:
		if va.IsNil() || vb.IsNil() || va.Elem().Kind() != reflect.Struct {
			return false
		}
		return fieldsEqual(va.Elem(), vb.Elem())
	case reflect.Map:
		return entriesEqual(va, vb)
	case reflect.Interface:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() == vb.IsNil()
		}
		return Equal(va.Elem().Interface(), vb.Elem().Interface())
	}
	return false
}

func fieldsEqual(a, b reflect.Value) bool {
	for i := 0; i < a.NumField(); i++ {
		if !identical(a.Field(i), b.Field(i)) {
			return false
		}
	}
	return true
}

func entriesEqual(a, b reflect.Value) bool {
	if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
		return false
	}
	iter := a.MapRange()
	for iter.Next() {
		other := b.MapIndex(iter.Key())
		if !other.IsValid() || !identical(iter.Value(), other) {
			return false
		}
	}
	return true
}

// SameValue reports whether a and b are the same value: reference kinds
// by address, scalars by value, NaN equal to itself.
func SameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	return identical(a, b)
}

func identical(a, b reflect.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		ea, eb := a.Elem(), b.Elem()
		if ea.Type() != eb.Type() {
			return false
		}
		return identical(ea, eb)
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !identical(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !identical(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	}
	return false
}
