package check

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// view is a flattened subject: scalar, sequence or grid.
// Grids may be ragged; rowStarts holds the flat offset of every row.
type view[T any] struct {
	data      []T
	rank      int // 0 scalar, 1 sequence, 2 grid
	rowStarts []int
	rowLens   []int
}

func scalarOf[T any](v T) view[T] {
	return view[T]{data: []T{v}}
}

func sequenceOf[T any](s []T) view[T] {
	return view[T]{data: s, rank: 1}
}

func gridOf[T any](g [][]T) view[T] {
	v := view[T]{
		rank:      2,
		rowStarts: make([]int, len(g)),
		rowLens:   make([]int, len(g)),
	}
	for i, row := range g {
		v.rowStarts[i] = len(v.data)
		v.rowLens[i] = len(row)
		v.data = append(v.data, row...)
	}
	return v
}

// sameShape reports whether two views can be compared elementwise.
func (v view[T]) sameShape(o view[T]) bool {
	if v.rank != o.rank || len(v.data) != len(o.data) {
		return false
	}
	if len(v.rowLens) != len(o.rowLens) {
		return false
	}
	for i := range v.rowLens {
		if v.rowLens[i] != o.rowLens[i] {
			return false
		}
	}
	return true
}

// position renders a flat index as a 1-based position.
func (v view[T]) position(flat int) string {
	switch v.rank {
	case 0:
		return "value"
	case 1:
		return fmt.Sprintf("(%d)", flat+1)
	}
	// Last row whose start is <= flat; empty rows share a start with the next one.
	row := sort.Search(len(v.rowStarts), func(i int) bool { return v.rowStarts[i] > flat }) - 1
	return fmt.Sprintf("(%d,%d)", row+1, flat-v.rowStarts[row]+1)
}

// shape renders the view's dimensions for size-mismatch diagnostics.
func (v view[T]) shape() string {
	switch v.rank {
	case 0:
		return "scalar"
	case 1:
		return fmt.Sprintf("[%d]", len(v.data))
	}
	if len(v.rowLens) == 0 {
		return "[0x0]"
	}
	regular := true
	for _, n := range v.rowLens {
		if n != v.rowLens[0] {
			regular = false
			break
		}
	}
	if regular {
		return fmt.Sprintf("[%dx%d]", len(v.rowLens), v.rowLens[0])
	}
	lens := make([]string, len(v.rowLens))
	for i, n := range v.rowLens {
		lens[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("[%d rows: %s]", len(v.rowLens), strings.Join(lens, ","))
}
