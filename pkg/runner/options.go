package runner

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relaunch/internal/checkpoint"
	"github.com/roach88/relaunch/internal/config"
	"github.com/roach88/relaunch/internal/journal"
)

// CrashPolicy decides what happens to a test whose body crashed the process.
type CrashPolicy int

const (
	// RetryCrashed marks a test complete only after its body returns, so a
	// crashing test runs again on the next launch.
	RetryCrashed CrashPolicy = iota
	// SkipCrashed marks a test complete before its body runs, so a crash
	// consumes the test and every launch makes progress.
	SkipCrashed
)

func (p CrashPolicy) String() string {
	switch p {
	case RetryCrashed:
		return config.CrashPolicyRetry
	case SkipCrashed:
		return config.CrashPolicySkip
	default:
		return fmt.Sprintf("CrashPolicy(%d)", int(p))
	}
}

// ParseCrashPolicy converts a config name to a CrashPolicy.
func ParseCrashPolicy(name string) (CrashPolicy, error) {
	switch name {
	case config.CrashPolicyRetry, "":
		return RetryCrashed, nil
	case config.CrashPolicySkip:
		return SkipCrashed, nil
	default:
		return RetryCrashed, fmt.Errorf("unknown crash policy %q", name)
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithMarker sets the run-request marker path.
func WithMarker(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.marker = path
		}
	}
}

// WithCheckpoint stores progress in a checkpoint file at path.
func WithCheckpoint(path string) Option {
	return func(r *Runner) {
		r.store = checkpoint.NewFileStore(path)
	}
}

// withStore replaces the checkpoint store, for fault injection in tests.
func withStore(s checkpoint.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithJournal records attempts in a SQLite journal at path.
// An empty path disables the journal.
func WithJournal(path string) Option {
	return func(r *Runner) {
		r.journalPath = path
	}
}

func withSessionIDs(gen journal.IDGenerator) Option {
	return func(r *Runner) {
		r.ids = gen
	}
}

func withJournalOptions(opts ...journal.Option) Option {
	return func(r *Runner) {
		r.journalOpts = append(r.journalOpts, opts...)
	}
}

// WithReport makes Finalize write a JSON summary to path.
// An empty path disables the report.
func WithReport(path string) Option {
	return func(r *Runner) {
		r.reportPath = path
	}
}

// WithPasses sets how many times RunTests replays the suite in one process.
// Each pass runs at most one test body. Zero replays until no test is left.
func WithPasses(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.passes = n
		}
	}
}

// WithCrashPolicy sets the crash policy. The default is RetryCrashed.
func WithCrashPolicy(p CrashPolicy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithRecoverPanics turns panics escaping a test body into failed
// assertions instead of process crashes.
func WithRecoverPanics(on bool) Option {
	return func(r *Runner) {
		r.recoverPanics = on
	}
}

// WithLogger sets the structured logger for runner diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput sets the operator log that receives test labels, failure
// blocks and the session summary.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithExit replaces os.Exit as the way Finalize ends the process.
func WithExit(exit func(code int)) Option {
	return func(r *Runner) {
		if exit != nil {
			r.exit = exit
		}
	}
}

// WithMaxListed caps the offending positions listed per failure.
func WithMaxListed(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxListed = n
		}
	}
}

// FromConfig translates a loaded config into options.
func FromConfig(cfg config.Config) ([]Option, error) {
	policy, err := ParseCrashPolicy(cfg.CrashPolicy)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithMarker(cfg.Marker),
		WithCheckpoint(cfg.Checkpoint),
		WithJournal(cfg.Journal),
		WithReport(cfg.Report),
		WithPasses(cfg.Passes),
		WithMaxListed(cfg.MaxListed),
		WithCrashPolicy(policy),
		WithRecoverPanics(cfg.RecoverPanics),
	}, nil
}

// FromFile loads the config file at path and translates it into options.
// A missing file yields the default configuration.
func FromFile(path string) ([]Option, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg)
}
