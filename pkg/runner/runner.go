package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/roach88/relaunch/internal/checkpoint"
	"github.com/roach88/relaunch/internal/config"
	"github.com/roach88/relaunch/internal/journal"
	"github.com/roach88/relaunch/internal/report"
	"github.com/roach88/relaunch/pkg/check"
)

// State is the persisted progress of a test session.
type State = checkpoint.State

// Runner drives one test binary's registrations for one launch.
//
// A Runner is not safe for concurrent registration. Assertions made from
// goroutines started by a test body are counted safely.
type Runner struct {
	marker        string
	store         checkpoint.Store
	journalPath   string
	journalOpts   []journal.Option
	ids           journal.IDGenerator
	reportPath    string
	passes        int
	policy        CrashPolicy
	recoverPanics bool
	logger        *slog.Logger
	out           io.Writer
	exit          func(int)
	maxListed     int

	mu      sync.Mutex // guards state
	state   State
	loaded  bool
	phase   Phase
	index   int  // registrations seen in the current pass
	ran     bool // a body ran in the current pass
	pending bool // a registration after that body was left for later
	owned   bool // BeginSession was called

	journal *journal.Journal
	session string
}

// New creates a runner with the default marker and checkpoint in the
// working directory.
func New(opts ...Option) *Runner {
	defaults := config.Default()
	r := &Runner{
		marker:    defaults.Marker,
		store:     checkpoint.NewFileStore(defaults.Checkpoint),
		ids:       journal.UUIDv7Generator{},
		passes:    defaults.Passes,
		policy:    RetryCrashed,
		logger:    slog.Default(),
		out:       os.Stdout,
		exit:      os.Exit,
		maxListed: check.DefaultMaxListed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Requested reports whether the run-request marker exists.
func (r *Runner) Requested() bool {
	_, err := os.Stat(r.marker)
	return err == nil
}

// Phase returns where the runner is within the current launch.
func (r *Runner) Phase() Phase {
	return r.phase
}

// State returns a copy of the session state as last loaded or updated.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AddFailure counts one failed assertion. It implements check.Counter.
func (r *Runner) AddFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Failures++
}

// Checker returns a checker that reports into this runner.
func (r *Runner) Checker() *check.Checker {
	return check.New(r.out, r, check.WithMaxListed(r.maxListed))
}

// Run registers a test and runs its body if it is the next one due.
//
// Every launch must call Run for the same tests in the same order. The
// position of a registration is its identity: the checkpoint records how
// many positions have completed, and reordering or inserting tests shifts
// that meaning onto different tests.
//
// At most one body runs per pass. Without a run-request marker Run does
// nothing at all.
func (r *Runner) Run(label string, body func(c *check.Checker)) {
	if !r.Requested() {
		r.phase = NotRequested
		return
	}
	r.load()

	r.index++
	if r.index <= r.State().LastCompleted {
		return
	}
	if r.ran {
		r.pending = true
		return
	}
	r.execute(label, body)
}

// Rewind starts a new pass over the registrations.
// Hosts that call Run directly use it together with Pending to replay
// their registrations within one process.
func (r *Runner) Rewind() {
	r.index = 0
	r.ran = false
	r.pending = false
}

// Pending reports whether the current pass left a test unrun.
func (r *Runner) Pending() bool {
	return r.pending
}

// BeginSession hands ownership of Finalize to the caller. RunTests then
// runs its suite exactly once without rewinding or finalizing, so several
// RunTests calls can share one pass and one session:
//
//	r.BeginSession()
//	for {
//		r.RunTests(parserTests)
//		r.RunTests(solverTests)
//		if !r.Pending() {
//			break
//		}
//		r.Rewind()
//	}
//	r.Finalize()
func (r *Runner) BeginSession() {
	r.owned = true
}

// RunTests replays suite for the configured number of passes and then calls
// Finalize. After BeginSession it runs suite once and leaves passes and
// Finalize to the caller.
func (r *Runner) RunTests(suite func(r *Runner)) {
	if !r.Requested() {
		r.phase = NotRequested
		return
	}
	if r.owned {
		suite(r)
		return
	}

	for pass := 1; ; pass++ {
		r.Rewind()
		suite(r)
		if !r.pending || (r.passes > 0 && pass >= r.passes) {
			break
		}
	}
	r.Finalize()
}

// Finalize ends the launch.
//
// If the last pass left tests unrun, the progress is saved and the process
// exits with status 0 so the driver launches it again. Otherwise the
// summary is printed, the checkpoint removed and the process exits with
// status 0. Without a run-request marker Finalize does nothing.
func (r *Runner) Finalize() {
	if !r.Requested() {
		r.phase = NotRequested
		return
	}
	r.load()

	if r.pending {
		r.phase = Persisting
		r.persist()
		r.updateJournalTotals()
		r.logger.Info("tests pending, relaunch required",
			"last_completed", r.State().LastCompleted)
		r.closeJournal()
		r.exit(0)
		return
	}

	st := r.State()
	summary := report.Summary{
		SessionID:     r.session,
		LastCompleted: st.LastCompleted,
		Failures:      st.Failures,
		Invocations:   st.Invocations,
		CrashedTests:  r.crashedTests(),
	}
	if err := summary.WriteText(r.out); err != nil {
		r.logger.Warn("cannot write summary", "error", err)
	}
	if r.reportPath != "" {
		if err := report.WriteFile(r.reportPath, summary); err != nil {
			r.logger.Warn("cannot write report", "path", r.reportPath, "error", err)
		}
	}
	r.finishJournal(st)

	if err := r.store.Clear(); err != nil {
		r.logger.Error("cannot remove checkpoint", "error", err)
	}
	r.phase = Done
	r.logger.Info("test session complete",
		"failures", st.Failures, "crashes", st.Crashes())
	r.closeJournal()
	r.exit(0)
}

// load reads the checkpoint and counts this launch, once per Runner.
func (r *Runner) load() {
	if r.loaded {
		return
	}
	r.loaded = true
	r.phase = Loading

	st, err := r.store.Load()
	fresh := false
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		r.logger.Debug("no checkpoint, starting a new session")
		fresh = true
	case err != nil:
		r.logger.Warn("unreadable checkpoint, starting a new session", "error", err)
		st = State{}
		fresh = true
	}

	r.mu.Lock()
	r.state = st
	r.state.Invocations++
	r.mu.Unlock()

	r.persist()
	r.openJournal(fresh)

	r.logger.Info("launch started",
		"invocation", r.State().Invocations,
		"last_completed", r.State().LastCompleted)
	r.phase = Replaying
}

func (r *Runner) execute(label string, body func(c *check.Checker)) {
	r.phase = Executing
	r.ran = true
	index := r.index

	fmt.Fprintf(r.out, "Test %d: %s\n", index, label)
	r.logger.Info("running test", "index", index, "label", label)

	if r.policy == SkipCrashed {
		r.setLastCompleted(index)
		r.persist()
	}

	attempt := r.beginAttempt(index, label)
	before := r.State().Failures

	r.runBody(label, body)

	r.phase = Persisting
	r.setLastCompleted(index)
	r.persist()
	r.completeAttempt(attempt, r.State().Failures-before)
	r.phase = Replaying
}

func (r *Runner) runBody(label string, body func(c *check.Checker)) {
	c := r.Checker()
	if r.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("test panicked", "label", label, "panic", p)
				details := []string{fmt.Sprintf("panic: %v", p)}
				details = append(details, strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")...)
				c.Report(&check.Failure{Description: label, Kind: "test panicked", Details: details})
			}
		}()
	}
	body(c)
}

func (r *Runner) setLastCompleted(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.LastCompleted = index
}

// persist saves the state. A failed save is counted like a failed assertion
// and the run continues.
func (r *Runner) persist() {
	if err := r.store.Save(r.State()); err != nil {
		r.logger.Error("checkpoint write failed", "error", err)
		r.Checker().Fail("checkpoint", "cannot write checkpoint", "error: "+err.Error())
	}
}
