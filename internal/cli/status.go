package cli

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/relaunch/internal/checkpoint"
	"github.com/roach88/relaunch/internal/journal"
)

// StatusResult describes the state left in the working directory.
type StatusResult struct {
	Requested     bool         `json:"requested"`
	Checkpoint    string       `json:"checkpoint"`
	InProgress    bool         `json:"in_progress"`
	LastCompleted int          `json:"last_completed"`
	Failures      int          `json:"failures"`
	Invocations   int          `json:"invocations"`
	Crashes       int          `json:"crashes"`
	Session       *SessionInfo `json:"session,omitempty"`
}

// SessionInfo is the journal's view of a session.
type SessionInfo struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Failures    int        `json:"failures"`
	Invocations int        `json:"invocations"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint and session state",
		Long: `Show whether a run is requested, how far the current session got and,
when a journal is configured, the latest journal session.

Examples:
  relaunch status
  relaunch status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts)
		},
	}
}

func runStatus(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	res := StatusResult{Checkpoint: cfg.Checkpoint}
	if _, err := os.Stat(cfg.Marker); err == nil {
		res.Requested = true
	}

	st, err := checkpoint.NewFileStore(cfg.Checkpoint).Load()
	switch {
	case err == nil:
		res.InProgress = true
		res.LastCompleted = st.LastCompleted
		res.Failures = st.Failures
		res.Invocations = st.Invocations
		res.Crashes = st.Crashes()
	case !errors.Is(err, checkpoint.ErrNotFound):
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}

	if cfg.Journal != "" {
		sess, err := latestSession(cmd.Context(), cfg.Journal)
		if err != nil {
			f.VerboseLog("journal: %v", err)
		} else {
			res.Session = sessionInfo(sess)
		}
	}

	if f.JSON() {
		return f.Success(res)
	}

	rows := [][]string{
		{"Run requested", yesNo(res.Requested)},
		{"Checkpoint", res.Checkpoint},
		{"Session in progress", yesNo(res.InProgress)},
	}
	if res.InProgress {
		rows = append(rows,
			[]string{"Last completed test", strconv.Itoa(res.LastCompleted)},
			[]string{"Failed assertions", strconv.Itoa(res.Failures)},
			[]string{"Launches", strconv.Itoa(res.Invocations)},
			[]string{"Crashes", strconv.Itoa(res.Crashes)},
		)
	}
	if s := res.Session; s != nil {
		finished := "open"
		if s.FinishedAt != nil {
			finished = s.FinishedAt.Format(time.RFC3339)
		}
		rows = append(rows,
			[]string{"Journal session", s.ID},
			[]string{"Session started", s.StartedAt.Format(time.RFC3339)},
			[]string{"Session finished", finished},
		)
	}
	return f.Table([]string{"Field", "Value"}, rows)
}

// latestSession opens an existing journal read-only in spirit: a missing
// file is reported instead of created.
func latestSession(ctx context.Context, path string) (journal.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	j, err := openExistingJournal(path)
	if err != nil {
		return journal.Session{}, err
	}
	defer j.Close()
	return j.LatestSession(ctx)
}

func openExistingJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return journal.Open(path)
}

func sessionInfo(s journal.Session) *SessionInfo {
	return &SessionInfo{
		ID:          s.ID,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Failures:    s.Failures,
		Invocations: s.Invocations,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
