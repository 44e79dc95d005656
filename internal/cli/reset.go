package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/relaunch/internal/checkpoint"
)

// ResetResult reports what reset removed.
type ResetResult struct {
	Checkpoint bool `json:"checkpoint_removed"`
	Marker     bool `json:"marker_removed"`
}

func (r ResetResult) String() string {
	switch {
	case r.Checkpoint && r.Marker:
		return "Removed checkpoint and run-request marker."
	case r.Checkpoint:
		return "Removed checkpoint."
	case r.Marker:
		return "Removed run-request marker."
	default:
		return "Nothing to reset."
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the checkpoint and the run-request marker",
		Long: `Remove the checkpoint and the run-request marker so the next run
starts a new session. The journal is kept; its open session is closed by the
next launch.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, rootOpts)
		},
	}
}

func runReset(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var res ResetResult
	store := checkpoint.NewFileStore(cfg.Checkpoint)
	if store.Exists() {
		if err := store.Clear(); err != nil {
			return WrapExitError(ExitCommandError, "failed to remove checkpoint", err)
		}
		res.Checkpoint = true
	}

	switch err := os.Remove(cfg.Marker); {
	case err == nil:
		res.Marker = true
	case !errors.Is(err, fs.ErrNotExist):
		return WrapExitError(ExitCommandError, "failed to remove marker", err)
	}

	return opts.formatter(cmd).Success(res)
}
