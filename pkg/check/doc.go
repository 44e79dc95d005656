// Package check is the assertion engine used from inside relaunch test bodies.
//
// Every primitive compares one or two subjects and, on mismatch, writes a
// failure block to the operator log and bumps a failure counter. Nothing in
// this package returns an error, panics or exits: a failing assertion must
// never stop the test body that made it.
//
// # Failure Blocks
//
// A failure block always starts with the Marker so that a driver can grep the
// accumulated log of many process launches:
//
//	FAILED: cell owners
//	  values differ at 2 of 12 positions
//	    (1,3): 5 vs 7
//	    (2,1): 1 vs 0
//	    number of differences: 2
//
// Positions are 1-based. Sequences use (i), grids use (row,col).
//
// # Subjects
//
// Subjects come in three shapes (scalar, sequence, grid) and three element
// families (integers, booleans, floating point). The shape variants share one
// generic comparison core:
//
//	check.Equal(c, "count", got, 3)
//	check.EqualSeq(c, "ids", []int{1, 2, 3}, want)
//	check.Comparable(c, "energy", e, 1.5, 1e-6)
//	check.ComparableGrid(c, "field", got, want, 1e-3)
//	c.AllTrue("converged", flags)
//
// # Floating Point Screening
//
// Comparable screens each operand for +Infinity, -Infinity and NaN before the
// magnitude check, and every screening hit is a separate failure. The
// magnitude check uses the average-magnitude relative error:
//
//	|a-b| > 0.5 * margin * (|a| + |b|)
//
// which is symmetric in a and b and exactly zero-tolerant for margin 0.
package check
