// Package report renders the end-of-session summary.
//
// The text form is what Finalize prints for the driver and operator; the
// canonical JSON form is written to a file for tooling.
package report

import (
	"fmt"
	"io"
	"os"
)

// Version is the schema version of the JSON report.
const Version = 1

// Summary is the outcome of one finished test session.
type Summary struct {
	SessionID     string // empty when no journal is configured
	LastCompleted int
	Failures      int
	Invocations   int
	CrashedTests  []CrashedTest
}

// CrashedTest names a test whose body never returned.
type CrashedTest struct {
	Index      int
	Label      string
	Invocation int
}

// Crashes is the number of launches that died before the session finished.
func (s Summary) Crashes() int {
	if s.Invocations < 1 {
		return 0
	}
	return s.Invocations - 1
}

// WriteText writes the fixed summary block. Crashed tests, when known, are
// listed after it.
func (s Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Test session complete\n=====================\nFailed assertions: %d\nCrashes:           %d\n",
		s.Failures, s.Crashes())
	if err != nil {
		return err
	}
	if len(s.CrashedTests) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Crashed tests:"); err != nil {
		return err
	}
	for _, ct := range s.CrashedTests {
		if _, err := fmt.Fprintf(w, "  %d %s (invocation %d)\n", ct.Index, ct.Label, ct.Invocation); err != nil {
			return err
		}
	}
	return nil
}

// MarshalCanonical renders the summary as canonical JSON.
func (s Summary) MarshalCanonical() ([]byte, error) {
	crashed := make([]any, len(s.CrashedTests))
	for i, ct := range s.CrashedTests {
		crashed[i] = map[string]any{
			"index":      ct.Index,
			"label":      ct.Label,
			"invocation": ct.Invocation,
		}
	}

	obj := map[string]any{
		"version":        Version,
		"last_completed": s.LastCompleted,
		"failures":       s.Failures,
		"invocations":    s.Invocations,
		"crashes":        s.Crashes(),
		"crashed_tests":  crashed,
	}
	if s.SessionID != "" {
		obj["session_id"] = s.SessionID
	}
	return MarshalCanonical(obj)
}

// WriteFile writes the canonical JSON report to path, newline-terminated.
func WriteFile(path string, s Summary) error {
	data, err := s.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
