package check

import (
	"fmt"
	"math"
	"unsafe"
)

// Integer is the set of element types accepted by the equality primitives.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Exact is the set of element types compared for exact equality.
type Exact interface {
	Integer | ~bool
}

// Float is the set of element types compared with a relative margin.
type Float interface {
	~float32 | ~float64
}

// Equal fails if got and want differ.
func Equal[T Exact](c *Checker, description string, got, want T) {
	exact(c, description, scalarOf(got), scalarOf(want))
}

// EqualSeq fails if the sequences differ in length or in any element.
func EqualSeq[T Exact](c *Checker, description string, got, want []T) {
	exact(c, description, sequenceOf(got), sequenceOf(want))
}

// EqualGrid fails if the grids differ in shape or in any element.
func EqualGrid[T Exact](c *Checker, description string, got, want [][]T) {
	exact(c, description, gridOf(got), gridOf(want))
}

// Comparable fails if either operand is non-finite or if the two differ by
// more than the relative margin.
func Comparable[T Float](c *Checker, description string, got, want T, margin float64) {
	withinMargin(c, description, scalarOf(got), scalarOf(want), margin)
}

// ComparableSeq is Comparable applied elementwise to two sequences.
func ComparableSeq[T Float](c *Checker, description string, got, want []T, margin float64) {
	withinMargin(c, description, sequenceOf(got), sequenceOf(want), margin)
}

// ComparableGrid is Comparable applied elementwise to two grids.
func ComparableGrid[T Float](c *Checker, description string, got, want [][]T, margin float64) {
	withinMargin(c, description, gridOf(got), gridOf(want), margin)
}

// True fails if v is false.
func (c *Checker) True(description string, v bool) {
	truth(c, description, scalarOf(v), true)
}

// False fails if v is true.
func (c *Checker) False(description string, v bool) {
	truth(c, description, scalarOf(v), false)
}

// AllTrue fails if any element of v is false.
func (c *Checker) AllTrue(description string, v []bool) {
	truth(c, description, sequenceOf(v), true)
}

// AllFalse fails if any element of v is true.
func (c *Checker) AllFalse(description string, v []bool) {
	truth(c, description, sequenceOf(v), false)
}

func exact[T Exact](c *Checker, description string, a, b view[T]) {
	if !a.sameShape(b) {
		c.Fail(description, "sizes differ", fmt.Sprintf("shapes %s and %s", a.shape(), b.shape()))
		return
	}

	var diff []int
	for i := range a.data {
		if a.data[i] != b.data[i] {
			diff = append(diff, i)
		}
	}
	if len(diff) == 0 {
		return
	}

	if a.rank == 0 {
		c.Fail(description, "values differ", fmt.Sprintf("%v vs %v", a.data[0], b.data[0]))
		return
	}

	details := c.listed(diff, func(i int) string {
		return fmt.Sprintf("%s: %v vs %v", a.position(i), a.data[i], b.data[i])
	})
	details = append(details, fmt.Sprintf("number of differences: %d", len(diff)))
	c.Fail(description, fmt.Sprintf("values differ at %d of %d positions", len(diff), len(a.data)), details...)
}

func withinMargin[T Float](c *Checker, description string, a, b view[T], margin float64) {
	huge := hugeOf[T]()

	screen(c, description, "first", a, huge)
	screen(c, description, "second", b, huge)

	if !a.sameShape(b) {
		c.Fail(description, "sizes differ", fmt.Sprintf("shapes %s and %s", a.shape(), b.shape()))
		return
	}

	var diff []int
	for i := range a.data {
		x, y := float64(a.data[i]), float64(b.data[i])
		// Non-finite pairs were already reported by screen.
		if !finite(x, huge) || !finite(y, huge) {
			continue
		}
		if exceedsMargin(x, y, margin) {
			diff = append(diff, i)
		}
	}
	if len(diff) == 0 {
		return
	}

	if a.rank == 0 {
		c.Fail(description, "values not comparable within margin",
			fmt.Sprintf("%v vs %v (margin %v)", a.data[0], b.data[0], margin))
		return
	}

	details := c.listed(diff, func(i int) string {
		return fmt.Sprintf("%s: %v vs %v", a.position(i), a.data[i], b.data[i])
	})
	details = append(details, fmt.Sprintf("number of differences: %d", len(diff)))
	c.Fail(description,
		fmt.Sprintf("values not comparable within margin %v at %d of %d positions", margin, len(diff), len(a.data)),
		details...)
}

// exceedsMargin is the average-magnitude relative error test.
// When the plain difference or sum overflows, both sides are halved, which
// keeps the inequality intact.
func exceedsMargin(x, y, margin float64) bool {
	diff, scale := math.Abs(x-y), math.Abs(x)+math.Abs(y)
	if math.IsInf(diff, 0) || math.IsInf(scale, 0) {
		diff, scale = math.Abs(x/2-y/2), math.Abs(x)/2+math.Abs(y)/2
	}
	return diff > 0.5*margin*scale
}

// screen reports +Infinity, -Infinity and NaN elements of one operand.
// Each kind found is its own failure.
func screen[T Float](c *Checker, description, operand string, v view[T], huge float64) {
	var posInf, negInf, nan []int
	for i, e := range v.data {
		x := float64(e)
		switch {
		case math.IsNaN(x):
			nan = append(nan, i)
		case x > huge:
			posInf = append(posInf, i)
		case x < -huge:
			negInf = append(negInf, i)
		}
	}
	nonFinite(c, description, operand, "+Infinity", v, posInf)
	nonFinite(c, description, operand, "-Infinity", v, negInf)
	nonFinite(c, description, operand, "NaN", v, nan)
}

func nonFinite[T Float](c *Checker, description, operand, what string, v view[T], positions []int) {
	if len(positions) == 0 {
		return
	}
	if v.rank == 0 {
		c.Fail(description, fmt.Sprintf("%s operand is %s", operand, what))
		return
	}
	details := c.listed(positions, v.position)
	details = append(details, fmt.Sprintf("number of %s elements: %d", what, len(positions)))
	c.Fail(description,
		fmt.Sprintf("%s operand contains %s at %d of %d positions", operand, what, len(positions), len(v.data)),
		details...)
}

func finite(x, huge float64) bool {
	return !math.IsNaN(x) && x <= huge && x >= -huge
}

// hugeOf returns the largest finite value of T's precision.
func hugeOf[T Float]() float64 {
	var zero T
	if unsafe.Sizeof(zero) == 4 {
		return math.MaxFloat32
	}
	return math.MaxFloat64
}

func truth(c *Checker, description string, v view[bool], want bool) {
	var off []int
	for i, b := range v.data {
		if b != want {
			off = append(off, i)
		}
	}
	if len(off) == 0 {
		return
	}

	if v.rank == 0 {
		c.Fail(description, fmt.Sprintf("expected %t, got %t", want, !want))
		return
	}

	details := c.listed(off, v.position)
	details = append(details, fmt.Sprintf("number of %t elements: %d", !want, len(off)))
	c.Fail(description, fmt.Sprintf("expected all %t, %d of %d elements are %t", want, len(off), len(v.data), !want), details...)
}
