// Command relaunch-demo is a small test binary built on the runner.
//
// Run it under the driver to watch a session survive a crash:
//
//	relaunch drive -- go run ./cmd/relaunch-demo
//
// The "unstable division" test crashes the process on its first attempt.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/roach88/relaunch/internal/config"
	"github.com/roach88/relaunch/pkg/check"
	"github.com/roach88/relaunch/pkg/runner"
)

func main() {
	opts, err := runner.FromFile(config.DefaultFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relaunch-demo:", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts = append(opts, runner.WithLogger(logger))

	r := runner.New(opts...)
	r.RunTests(suite)
}

func suite(r *runner.Runner) {
	r.Run("integer arithmetic", func(c *check.Checker) {
		check.Equal(c, "sum", 2+2, 4)
		check.EqualSeq(c, "squares", []int{1, 4, 9}, []int{1, 4, 9})
	})

	r.Run("floating point", func(c *check.Checker) {
		check.Comparable(c, "sqrt(2)^2", math.Sqrt2*math.Sqrt2, 2.0, 1e-12)
		check.ComparableSeq(c, "series", []float64{1, 0.5, 0.25}, []float64{1, 0.5, 0.26}, 1e-3)
	})

	r.Run("unstable division", func(c *check.Checker) {
		flag := filepath.Join(os.TempDir(), "relaunch-demo.crashed")
		if _, err := os.Stat(flag); err != nil {
			_ = os.WriteFile(flag, nil, 0o644)
			var zero []float64
			_ = zero[3] // index out of range: the process dies here
		}
		_ = os.Remove(flag)
		c.True("recovered", true)
	})

	r.Run("scratch files", func(c *check.Checker) {
		path := filepath.Join(os.TempDir(), "relaunch-demo.scratch")
		c.MakeEmptyFile("create scratch", path)
		c.FileExists("scratch exists", path)
		c.RemoveFile("remove scratch", path)
		c.AllFalse("flags", []bool{false, false, true})
	})
}
