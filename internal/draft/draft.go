// Package draft produces immutable next states from in-place edits.
//
// Produce hands a recipe a deep copy of the base value. After the recipe
// returns, every branch of the copy that is still equal to the base is
// swapped back for the base's own reference, so only changed branches are
// new. The base is never written to.
//
// Unexported struct fields are copied by value and are not descended
// into; state types that keep mutable data behind unexported reference
// fields must not edit that data from a recipe.
package draft

import (
	"reflect"

	"github.com/centraunit/servicex/internal/shallow"
)

// Produce applies recipe to a copy of base and returns the result with
// unchanged branches shared with base.
func Produce[S any](base S, recipe func(draft *S)) S {
	bv := reflect.ValueOf(&base).Elem()

	work := reflect.New(bv.Type())
	work.Elem().Set(deepCopy(bv, make(map[uintptr]reflect.Value)))
	recipe(work.Interface().(*S))

	out, _ := share(bv, work.Elem(), make(map[uintptr]bool))
	var result S
	reflect.ValueOf(&result).Elem().Set(out)
	return result
}

func deepCopy(v reflect.Value, seen map[uintptr]reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		if c, ok := seen[v.Pointer()]; ok {
			return c
		}
		n := reflect.New(v.Type().Elem())
		seen[v.Pointer()] = n
		n.Elem().Set(deepCopy(v.Elem(), seen))
		return n
	case reflect.Struct:
		n := reflect.New(v.Type()).Elem()
		n.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			n.Field(i).Set(deepCopy(v.Field(i), seen))
		}
		return n
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		n := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			n.SetMapIndex(iter.Key(), deepCopy(iter.Value(), seen))
		}
		return n
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		n := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			n.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return n
	case reflect.Array:
		n := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			n.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return n
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		n := reflect.New(v.Type()).Elem()
		n.Set(deepCopy(v.Elem(), seen))
		return n
	}
	return v
}

// share rebuilds cur, reusing old wherever the two are equal. The bool
// reports whether old was reused as a whole.
func share(old, cur reflect.Value, visiting map[uintptr]bool) (reflect.Value, bool) {
	switch cur.Kind() {
	case reflect.Pointer:
		if old.IsNil() || cur.IsNil() {
			if old.IsNil() && cur.IsNil() {
				return old, true
			}
			return cur, false
		}
		if visiting[old.Pointer()] {
			return cur, false
		}
		visiting[old.Pointer()] = true
		defer delete(visiting, old.Pointer())

		elem, same := share(old.Elem(), cur.Elem(), visiting)
		if same {
			return old, true
		}
		n := reflect.New(cur.Type().Elem())
		n.Elem().Set(elem)
		return n, false

	case reflect.Struct:
		n := reflect.New(cur.Type()).Elem()
		n.Set(cur)
		same := true
		for i := 0; i < cur.NumField(); i++ {
			if !cur.Type().Field(i).IsExported() {
				same = same && shallow.SameValue(old.Field(i), cur.Field(i))
				continue
			}
			f, ok := share(old.Field(i), cur.Field(i), visiting)
			n.Field(i).Set(f)
			same = same && ok
		}
		if same {
			return old, true
		}
		return n, false

	case reflect.Map:
		if old.IsNil() || cur.IsNil() {
			if old.IsNil() && cur.IsNil() {
				return old, true
			}
			return cur, false
		}
		n := reflect.MakeMapWithSize(cur.Type(), cur.Len())
		same := old.Len() == cur.Len()
		iter := cur.MapRange()
		for iter.Next() {
			prev := old.MapIndex(iter.Key())
			if !prev.IsValid() {
				n.SetMapIndex(iter.Key(), iter.Value())
				same = false
				continue
			}
			v, ok := share(prev, iter.Value(), visiting)
			n.SetMapIndex(iter.Key(), v)
			same = same && ok
		}
		if same {
			return old, true
		}
		return n, false

	case reflect.Slice:
		if old.IsNil() || cur.IsNil() {
			if old.IsNil() && cur.IsNil() {
				return old, true
			}
			return cur, false
		}
		n := reflect.MakeSlice(cur.Type(), cur.Len(), cur.Len())
		same := old.Len() == cur.Len()
		for i := 0; i < cur.Len(); i++ {
			if i >= old.Len() {
				n.Index(i).Set(cur.Index(i))
				continue
			}
			v, ok := share(old.Index(i), cur.Index(i), visiting)
			n.Index(i).Set(v)
			same = same && ok
		}
		if same {
			return old, true
		}
		return n, false

	case reflect.Array:
		n := reflect.New(cur.Type()).Elem()
		same := true
		for i := 0; i < cur.Len(); i++ {
			v, ok := share(old.Index(i), cur.Index(i), visiting)
			n.Index(i).Set(v)
			same = same && ok
		}
		if same {
			return old, true
		}
		return n, false

	case reflect.Interface:
		if old.IsNil() || cur.IsNil() {
			if old.IsNil() && cur.IsNil() {
				return old, true
			}
			return cur, false
		}
		if old.Elem().Type() != cur.Elem().Type() {
			return cur, false
		}
		v, ok := share(old.Elem(), cur.Elem(), visiting)
		if ok {
			return old, true
		}
		n := reflect.New(cur.Type()).Elem()
		n.Set(v)
		return n, false
	}

	if shallow.SameValue(old, cur) {
		return old, true
	}
	return cur, false
}
