package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/relaunch/internal/checkpoint"
	"github.com/roach88/relaunch/internal/testutil"
	"github.com/roach88/relaunch/pkg/check"
)

// errCrash is panicked by test bodies to stand in for a process crash.
var errCrash = errors.New("simulated crash")

// workspace is a directory holding a marker and a checkpoint, shared by the
// launches of one simulated session.
type workspace struct {
	t          *testing.T
	dir        string
	marker     string
	checkpoint string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		t:          t,
		dir:        dir,
		marker:     filepath.Join(dir, "relaunch.run"),
		checkpoint: filepath.Join(dir, "relaunch.lst"),
	}
	if err := os.WriteFile(ws.marker, nil, 0o644); err != nil {
		t.Fatalf("create marker: %v", err)
	}
	return ws
}

// launch is the observable result of one simulated process launch.
type launch struct {
	runner  *Runner
	out     *bytes.Buffer
	exits   *testutil.ExitRecorder
	crashed bool
}

// runner builds a Runner as a fresh process would.
func (ws *workspace) runner(opts ...Option) (*Runner, *bytes.Buffer, *testutil.ExitRecorder) {
	out := &bytes.Buffer{}
	exits := &testutil.ExitRecorder{}
	base := []Option{
		WithMarker(ws.marker),
		WithCheckpoint(ws.checkpoint),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithOutput(out),
		WithExit(exits.Exit),
	}
	return New(append(base, opts...)...), out, exits
}

// launch runs suite in a new Runner. A body panicking with errCrash ends the
// launch the way a crash would: nothing after the panic runs.
func (ws *workspace) launch(suite func(r *Runner), opts ...Option) (l launch) {
	ws.t.Helper()
	r, out, exits := ws.runner(opts...)
	l = launch{runner: r, out: out, exits: exits}

	defer func() {
		if p := recover(); p != nil {
			if p != errCrash {
				panic(p)
			}
			l.crashed = true
			r.closeJournal()
		}
	}()
	r.RunTests(suite)
	return l
}

// readCheckpoint returns the raw checkpoint contents, or "" when absent.
func (ws *workspace) readCheckpoint() string {
	ws.t.Helper()
	data, err := os.ReadFile(ws.checkpoint)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	if err != nil {
		ws.t.Fatalf("read checkpoint: %v", err)
	}
	return string(data)
}

// recorder collects the labels of executed bodies in order.
type recorder struct {
	ran []string
}

// test returns a body that records label and then runs fn.
func (rec *recorder) test(label string, fn func(c *check.Checker)) func(c *check.Checker) {
	return func(c *check.Checker) {
		rec.ran = append(rec.ran, label)
		if fn != nil {
			fn(c)
		}
	}
}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) Load() (checkpoint.State, error) { return checkpoint.State{}, checkpoint.ErrNotFound }
func (failingStore) Save(checkpoint.State) error     { return errors.New("disk full") }
func (failingStore) Clear() error                    { return nil }
func (failingStore) Exists() bool                    { return false }

func summaryText(failures, crashes int) string {
	return fmt.Sprintf("Test session complete\n=====================\nFailed assertions: %d\nCrashes:           %d\n",
		failures, crashes)
}
