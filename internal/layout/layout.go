// Package layout answers size, alignment and pointer questions about Go
// types for the arena allocators.
package layout

import (
	"fmt"
	"math"
	"math/bits"
	"reflect"
	"unsafe"
)

// Layout is the size and alignment of a type in bytes.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// Of returns the layout of T.
func Of[T any]() Layout {
	var zero T
	return Layout{Size: unsafe.Sizeof(zero), Align: unsafe.Alignof(zero)}
}

// Array returns the layout of n consecutive values described by l.
// It panics if the total size overflows an int.
func (l Layout) Array(n int) Layout {
	return Layout{Size: MulCheck(l.Size, n), Align: l.Align}
}

// MulCheck returns size*n and panics on overflow.
func MulCheck(size uintptr, n int) uintptr {
	if n < 0 {
		panic(fmt.Sprintf("arena: negative element count %d", n))
	}
	hi, lo := bits.Mul64(uint64(size), uint64(n))
	if hi != 0 || lo > math.MaxInt {
		panic(fmt.Sprintf("arena: capacity overflow (%d elements of %d bytes)", n, size))
	}
	return uintptr(lo)
}

// AlignDown rounds addr down to a multiple of align, which must be a power of two.
func AlignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// AlignUp rounds addr up to a multiple of align, which must be a power of two.
func AlignUp(addr, align uintptr) uintptr {
	mask := align - 1
	return (addr + mask) &^ mask
}

// PointerFree reports whether values of t hold no references the garbage
// collector has to trace. Only such values may live in raw byte chunks.
func PointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || PointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !PointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		// Pointer, String, Slice, Map, Chan, Func, Interface, UnsafePointer.
		return false
	}
}
