package check

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Marker opens every failure block written to the operator log.
const Marker = "FAILED:"

// DefaultMaxListed is the number of offending positions listed per failure.
const DefaultMaxListed = 50

// Counter accumulates assertion failures.
// The runner implements it on top of its persisted session state.
type Counter interface {
	AddFailure()
}

// Tally is a standalone Counter for using a Checker outside a runner.
type Tally struct {
	mu sync.Mutex
	n  int
}

// AddFailure implements Counter.
func (t *Tally) AddFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
}

// Failures returns the number of failures recorded so far.
func (t *Tally) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Failure describes a single failed assertion.
// It is what gets rendered into the operator log.
type Failure struct {
	Description string   // Caller-supplied description of the assertion
	Kind        string   // Human-readable kind of mismatch
	Details     []string // Values, positions and counts
}

// Error implements the error interface so failures can travel as errors
// (the runner uses this for recovered panics and checkpoint write failures).
func (f *Failure) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "%s %s\n", Marker, f.Description)
	fmt.Fprintf(&buf, "  %s\n", f.Kind)
	for _, d := range f.Details {
		fmt.Fprintf(&buf, "    %s\n", d)
	}

	return buf.String()
}

// Checker evaluates assertions and reports failures.
// The zero value is not usable; construct one with New.
type Checker struct {
	out       io.Writer
	counter   Counter
	maxListed int
}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxListed caps the number of offending positions listed per failure.
// Values below 1 are ignored.
func WithMaxListed(n int) Option {
	return func(c *Checker) {
		if n >= 1 {
			c.maxListed = n
		}
	}
}

// New creates a Checker writing failure blocks to out and counting them in
// counter. A nil out discards diagnostics; a nil counter gets a private Tally.
func New(out io.Writer, counter Counter, opts ...Option) *Checker {
	if out == nil {
		out = io.Discard
	}
	if counter == nil {
		counter = &Tally{}
	}
	c := &Checker{
		out:       out,
		counter:   counter,
		maxListed: DefaultMaxListed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report records an already-built failure.
// Exposed so that callers with their own checks can reuse the log format.
func (c *Checker) Report(f *Failure) {
	// A write error on the operator log is not actionable here; the counter
	// still records the failure.
	_, _ = io.WriteString(c.out, f.Error())
	c.counter.AddFailure()
}

// Fail records a failure with free-form detail lines.
func (c *Checker) Fail(description, kind string, details ...string) {
	c.Report(&Failure{Description: description, Kind: kind, Details: details})
}

// listed renders up to maxListed of the given flat positions and appends the
// "N more" trailer when the list was cut.
func (c *Checker) listed(positions []int, line func(int) string) []string {
	n := len(positions)
	if n > c.maxListed {
		n = c.maxListed
	}
	out := make([]string, 0, n+1)
	for _, p := range positions[:n] {
		out = append(out, line(p))
	}
	if rest := len(positions) - n; rest > 0 {
		out = append(out, fmt.Sprintf("... %d more not shown", rest))
	}
	return out
}
