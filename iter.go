package arena

import "iter"

// inlineLen is the number of values staged on the stack before collect
// spills to the heap.
const inlineLen = 8

// collect appends every value of seq to buf.
func collect[T any](seq iter.Seq[T], buf []T) []T {
	for v := range seq {
		buf = append(buf, v)
	}
	return buf
}

// limit yields at most n values of seq.
func limit[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		if n <= 0 {
			return
		}
		i := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			i++
			if i == n {
				return
			}
		}
	}
}
