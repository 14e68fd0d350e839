package format

import (
	"math"
	"reflect"
	"unsafe"
)

// efaceWords mirrors the runtime layout of an empty interface, as used by
// sync/atomic.Value.
type efaceWords struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// funcIdentity returns the address of the closure object held by v. Func
// values are pointer-shaped, so the interface data word is the closure
// itself: two evaluations of the same func literal that capture variables
// yield different identities, while a top-level function always yields the
// same one.
func funcIdentity(v any) uintptr {
	return uintptr((*efaceWords)(unsafe.Pointer(&v)).data)
}

// Same reports whether a and b are the same value. Floats follow
// same-value semantics (NaN equals NaN, +0 and -0 differ); funcs, pointers,
// maps, chans and slices compare by identity; structs and arrays compare
// member-wise.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Kind() == reflect.Func {
		return funcIdentity(a) == funcIdentity(b)
	}

	return sameValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}

	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return sameFloat(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		x, y := a.Complex(), b.Complex()

		return sameFloat(real(x), real(y)) && sameFloat(imag(x), imag(y))
	case reflect.String:
		return a.String() == b.String()
	case reflect.Func:
		if a.CanInterface() && b.CanInterface() {
			return Same(a.Interface(), b.Interface())
		}

		// Unexported func fields can only be compared by code pointer.
		return a.Pointer() == b.Pointer()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() &&
			a.Len() == b.Len() &&
			a.Cap() == b.Cap()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}

		return sameValue(a.Elem(), b.Elem())
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}

		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func sameFloat(x, y float64) bool {
	if math.IsNaN(x) && math.IsNaN(y) {
		return true
	}

	return math.Float64bits(x) == math.Float64bits(y)
}
