// Package driver relaunches a test binary until its session is complete.
//
// The driver creates the run-request marker, launches the binary, and keeps
// relaunching it for as long as the checkpoint exists. Each launch either
// finishes the session (the runner removes the checkpoint) or ends early,
// by crashing or by leaving tests for the next launch. All output is
// appended to one log; when the loop ends the failure blocks are extracted
// from it and the marker is removed.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/roach88/relaunch/internal/checkpoint"
)

// ErrLaunchLimit is returned when the session did not finish within
// MaxLaunches launches.
var ErrLaunchLimit = errors.New("launch limit reached before the session finished")

// Driver runs the relaunch loop.
type Driver struct {
	Marker      string       // run-request marker to create
	Checkpoint  string       // checkpoint whose presence means "launch again"
	LogFile     string       // accumulated output of every launch
	MaxLaunches int          // upper bound on launches; zero means unbounded
	Echo        io.Writer    // optional live copy of the output
	Env         []string     // extra environment for the binary
	Logger      *slog.Logger // nil means slog.Default()
}

// Result summarizes a driven session.
type Result struct {
	Launches int      `json:"launches"`
	Crashed  int      `json:"crashed"`  // launches that exited with a non-zero status
	Failures []string `json:"failures"` // failure blocks found in the log
	LogFile  string   `json:"log_file"`
}

// Drive launches name with args until the checkpoint disappears.
// The marker is removed when Drive returns, whatever the outcome.
func (d *Driver) Drive(ctx context.Context, name string, args ...string) (Result, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{LogFile: d.LogFile, Failures: []string{}}

	if err := os.WriteFile(d.Marker, nil, 0o644); err != nil {
		return res, fmt.Errorf("create marker: %w", err)
	}
	defer func() {
		if err := os.Remove(d.Marker); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot remove marker", "path", d.Marker, "error", err)
		}
	}()

	logFile, err := os.Create(d.LogFile)
	if err != nil {
		return res, fmt.Errorf("create log: %w", err)
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if d.Echo != nil {
		out = io.MultiWriter(logFile, d.Echo)
	}

	store := checkpoint.NewFileStore(d.Checkpoint)
	for {
		if d.MaxLaunches > 0 && res.Launches >= d.MaxLaunches {
			return d.finish(res, logFile, ErrLaunchLimit)
		}
		res.Launches++

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = out
		cmd.Stderr = out
		cmd.Env = append(os.Environ(), d.Env...)

		logger.Debug("launching", "launch", res.Launches, "binary", name)
		err := cmd.Run()
		if ctx.Err() != nil {
			return d.finish(res, logFile, ctx.Err())
		}

		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.Crashed++
			logger.Info("launch ended abnormally", "launch", res.Launches, "status", exitErr.ExitCode())
		case err != nil:
			return d.finish(res, logFile, fmt.Errorf("launch %s: %w", name, err))
		}

		if !store.Exists() {
			logger.Info("session complete", "launches", res.Launches)
			return d.finish(res, logFile, nil)
		}
	}
}

// finish scans the log for failure blocks and returns res with cause.
func (d *Driver) finish(res Result, logFile *os.File, cause error) (Result, error) {
	if _, err := logFile.Seek(0, io.SeekStart); err != nil {
		return res, errors.Join(cause, fmt.Errorf("rewind log: %w", err))
	}
	blocks, err := ExtractFailures(logFile)
	if err != nil {
		return res, errors.Join(cause, err)
	}
	res.Failures = blocks
	return res, cause
}
