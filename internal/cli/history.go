package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/relaunch/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string
}

// AttemptInfo is one executed test body.
type AttemptInfo struct {
	Invocation  int        `json:"invocation"`
	Index       int        `json:"index"`
	Label       string     `json:"label"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Failures    int        `json:"failures"`
	Crashed     bool       `json:"crashed"`
}

// HistoryResult lists the attempts of one session.
type HistoryResult struct {
	Session  SessionInfo   `json:"session"`
	Attempts []AttemptInfo `json:"attempts"`
	Crashed  int           `json:"crashed"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the test attempts recorded in the journal",
		Long: `List every test attempt of a journal session in execution order.
An attempt that never completed belongs to a launch that crashed inside
that test.

Examples:
  relaunch history
  relaunch history --db relaunch.db --session 0190a5b2-7c3d-7e4f-8a1b-2c3d4e5f6a7b
  relaunch history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: latest)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	path := cfg.Journal
	if opts.Database != "" {
		path = opts.Database
	}
	if path == "" {
		_ = f.Error(ErrCodeNoJournal, "no journal configured", nil)
		return NewExitError(ExitCommandError, "no journal configured; set journal in the config or pass --db")
	}

	j, err := openExistingJournal(path)
	if err != nil {
		_ = f.Error(ErrCodeNoJournal, "cannot open journal", err.Error())
		return WrapExitError(ExitCommandError, "cannot open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var sess journal.Session
	if opts.Session != "" {
		sess, err = j.Session(ctx, opts.Session)
	} else {
		sess, err = j.LatestSession(ctx)
	}
	if errors.Is(err, journal.ErrNoSession) {
		_ = f.Error(ErrCodeNoSession, "no session found", opts.Session)
		return WrapExitError(ExitCommandError, "no session found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	attempts, err := j.Attempts(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read attempts", err)
	}

	res := HistoryResult{Session: *sessionInfo(sess), Attempts: make([]AttemptInfo, 0, len(attempts))}
	for _, a := range attempts {
		res.Attempts = append(res.Attempts, AttemptInfo{
			Invocation:  a.Invocation,
			Index:       a.Index,
			Label:       a.Label,
			StartedAt:   a.StartedAt,
			CompletedAt: a.CompletedAt,
			Failures:    a.Failures,
			Crashed:     a.Crashed(),
		})
		if a.Crashed() {
			res.Crashed++
		}
	}

	if f.JSON() {
		return f.Success(res)
	}

	rows := make([][]string, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		rows = append(rows, []string{
			strconv.Itoa(a.Invocation),
			strconv.Itoa(a.Index),
			a.Label,
			a.StartedAt.Format(time.RFC3339),
			attemptResult(a),
		})
	}
	fmt.Fprintf(f.Writer, "Session %s: %d attempts, %d crashed\n", sess.ID, len(res.Attempts), res.Crashed)
	return f.Table([]string{"Launch", "Test", "Label", "Started", "Result"}, rows)
}

func attemptResult(a AttemptInfo) string {
	switch {
	case a.Crashed:
		return "CRASHED"
	case a.Failures > 0:
		return fmt.Sprintf("%d failed", a.Failures)
	default:
		return "ok"
	}
}
