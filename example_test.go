package arena

import (
	"fmt"
	"slices"
)

// conn stands in for a value that owns an external resource.
type conn struct {
	fd     int
	closed *int
}

func (c *conn) Finalize() {
	*c.closed++
}

// Example builds a small tree in one composite arena and frees it in one go.
func Example() {
	type ident struct {
		sym  uint32
		span uint64
	}
	type expr struct {
		op   string
		args []*ident
	}

	a := NewArena()
	defer a.Release()

	// expr holds pointers, so it gets its own typed arena.
	Register[expr](a)

	x := Alloc(a, ident{sym: 1})
	y := Alloc(a, ident{sym: 2})
	sum := Alloc(a, expr{op: "+", args: []*ident{x, y}})

	fmt.Printf("%s(%d, %d)\n", sum.op, sum.args[0].sym, sum.args[1].sym)
	fmt.Println("chunks:", a.Metrics().NumChunks)

	// Output:
	// +(1, 2)
	// chunks: 2
}

func ExampleTypedArena() {
	closed := 0
	a := NewTypedArena[conn]()

	for fd := range 3 {
		a.Alloc(conn{fd: fd + 3, closed: &closed})
	}
	fmt.Println("open:", a.Len())

	a.Release()
	fmt.Println("closed:", closed)

	// Output:
	// open: 3
	// closed: 3
}

func ExampleTypedArena_AllocFromIter() {
	a := NewTypedArena[string]()
	defer a.Release()

	words := a.AllocFromIter(slices.Values([]string{"fn", "main", "()"}))
	fmt.Println(words)

	m := a.Metrics()
	fmt.Printf("values: %d, chunks: %d\n", a.Len(), m.NumChunks)

	// Output:
	// [fn main ()]
	// values: 3, chunks: 1
}

func ExampleDroplessArena() {
	a := NewDroplessArena()
	defer a.Release()

	lines := DroplessAllocSlice(a, []uint32{0, 12, 40, 41})
	offset := DroplessAlloc(a, uint64(4096))

	fmt.Println(lines, *offset)
	fmt.Printf("capacity: %d bytes\n", a.Metrics().Capacity)

	// Output:
	// [0 12 40 41] 4096
	// capacity: 4096 bytes
}

func ExampleTypedArena_Metrics() {
	a := NewTypedArena[int64]()
	defer a.Release()

	for i := range 64 {
		a.Alloc(int64(i))
	}
	m := a.Metrics()
	fmt.Printf("in use: %d bytes of %d (%.2f%%)\n", m.SizeInUse, m.Capacity, m.Utilization*100)

	// Output:
	// in use: 512 bytes of 4096 (12.50%)
}
