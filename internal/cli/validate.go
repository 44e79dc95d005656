package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relaunch/internal/config"
)

// ValidateResult is returned for a valid config.
type ValidateResult struct {
	Path   string        `json:"path"`
	Config config.Config `json:"config"`
}

func (r ValidateResult) String() string {
	return fmt.Sprintf("%s: valid", r.Path)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a config file",
		Long: `Parse a config file and check it against the config schema.
Unknown fields and out-of-range values are reported together.

Exit codes:
  0 - Config is valid
  1 - Config has schema violations
  2 - Command error (file not found, YAML syntax error, etc.)

Examples:
  relaunch validate
  relaunch validate ci/relaunch.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultFile
			}
			return runValidate(cmd, rootOpts, path)
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := opts.formatter(cmd)

	cfg, err := config.Load(path)
	var verr *config.ValidationError
	switch {
	case errors.As(err, &verr):
		if f.JSON() {
			_ = f.Error(ErrCodeConfigInvalid, "config failed validation", verr.Issues)
		} else {
			fmt.Fprintln(f.Writer, verr.Error())
		}
		return WrapExitError(ExitFailure, "invalid config", err)
	case err != nil:
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot load config", err)
	}

	return f.Success(ValidateResult{Path: path, Config: cfg})
}
