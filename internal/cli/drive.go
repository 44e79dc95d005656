package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/relaunch/internal/driver"
)

// DriveOptions holds flags for the drive command.
type DriveOptions struct {
	*RootOptions
	MaxLaunches int
	LogFile     string
	Quiet       bool
}

// NewDriveCommand creates the drive command.
func NewDriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drive -- <binary> [args...]",
		Short: "Launch a test binary until its session completes",
		Long: `Create the run-request marker and launch the test binary repeatedly
until its checkpoint disappears. Output of every launch is collected in one
log; when the session ends the failure blocks are extracted from it and the
marker is removed.

Exit codes:
  0 - Session finished without failed assertions
  1 - Failed assertions found, or the launch limit was reached
  2 - Command error (binary not found, unwritable log, etc.)

Examples:
  relaunch drive -- ./bin/solver-tests
  relaunch drive --max-launches 50 --log run.log -- ./bin/solver-tests -case big
  relaunch drive --format json -- ./bin/solver-tests`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrive(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.MaxLaunches, "max-launches", 0, "upper bound on launches (default from config)")
	cmd.Flags().StringVar(&opts.LogFile, "log", "", "accumulated output log (default from config)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not echo test output")

	return cmd
}

func runDrive(cmd *cobra.Command, opts *DriveOptions, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	d := &driver.Driver{
		Marker:      cfg.Marker,
		Checkpoint:  cfg.Checkpoint,
		LogFile:     cfg.Driver.LogFile,
		MaxLaunches: cfg.Driver.MaxLaunches,
		Logger:      opts.logger(cmd.ErrOrStderr(), cfg),
	}
	if cmd.Flags().Changed("max-launches") {
		d.MaxLaunches = opts.MaxLaunches
	}
	if opts.LogFile != "" {
		d.LogFile = opts.LogFile
	}
	// Echoed output would corrupt a JSON response.
	if !opts.Quiet && !f.JSON() {
		d.Echo = cmd.OutOrStdout()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := d.Drive(ctx, args[0], args[1:]...)
	switch {
	case errors.Is(err, driver.ErrLaunchLimit):
		if outErr := reportDrive(f, res); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "session did not finish", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "drive failed", err)
	}

	if err := reportDrive(f, res); err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d failed assertions", len(res.Failures)))
	}
	return nil
}

func reportDrive(f *OutputFormatter, res driver.Result) error {
	if f.JSON() {
		return f.Success(res)
	}
	w := f.Writer
	fmt.Fprintf(w, "\n%d launches, %d ended abnormally; log in %s\n", res.Launches, res.Crashed, res.LogFile)
	if len(res.Failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%d failed assertions:\n\n", len(res.Failures))
	for _, block := range res.Failures {
		if _, err := io.WriteString(w, block); err != nil {
			return err
		}
	}
	return nil
}
