package runner

import (
	"context"

	"github.com/roach88/relaunch/internal/journal"
	"github.com/roach88/relaunch/internal/report"
)

// Journal failures are logged and otherwise ignored: the journal explains a
// session, it never decides one.

func (r *Runner) openJournal(fresh bool) {
	if r.journalPath == "" {
		return
	}
	ctx := context.Background()

	j, err := journal.Open(r.journalPath, r.journalOpts...)
	if err != nil {
		r.logger.Warn("journal unavailable", "path", r.journalPath, "error", err)
		return
	}

	if fresh {
		if n, err := j.AbandonOpenSessions(ctx); err != nil {
			r.logger.Warn("cannot close stale journal sessions", "error", err)
		} else if n > 0 {
			r.logger.Info("closed stale journal sessions", "count", n)
		}
	}

	sess, err := j.OpenSession(ctx, r.ids)
	if err != nil {
		r.logger.Warn("cannot open journal session", "error", err)
		j.Close()
		return
	}

	r.journal = j
	r.session = sess.ID
	r.updateJournalTotals()
}

func (r *Runner) closeJournal() {
	if r.journal == nil {
		return
	}
	if err := r.journal.Close(); err != nil {
		r.logger.Warn("cannot close journal", "error", err)
	}
	r.journal = nil
}

func (r *Runner) beginAttempt(index int, label string) int64 {
	if r.journal == nil {
		return 0
	}
	id, err := r.journal.BeginAttempt(context.Background(), r.session, r.State().Invocations, index, label)
	if err != nil {
		r.logger.Warn("cannot record attempt", "index", index, "error", err)
		return 0
	}
	return id
}

func (r *Runner) completeAttempt(id int64, failures int) {
	if r.journal == nil || id == 0 {
		return
	}
	if err := r.journal.CompleteAttempt(context.Background(), id, failures); err != nil {
		r.logger.Warn("cannot complete attempt", "attempt", id, "error", err)
	}
	r.updateJournalTotals()
}

func (r *Runner) updateJournalTotals() {
	if r.journal == nil {
		return
	}
	st := r.State()
	if err := r.journal.UpdateTotals(context.Background(), r.session, st.Failures, st.Invocations); err != nil {
		r.logger.Warn("cannot update journal totals", "error", err)
	}
}

func (r *Runner) finishJournal(st State) {
	if r.journal == nil {
		return
	}
	if err := r.journal.FinishSession(context.Background(), r.session, st.Failures, st.Invocations); err != nil {
		r.logger.Warn("cannot finish journal session", "error", err)
	}
}

// crashedTests lists the attempts of this session that never completed.
func (r *Runner) crashedTests() []report.CrashedTest {
	if r.journal == nil {
		return nil
	}
	attempts, err := r.journal.Crashed(context.Background(), r.session)
	if err != nil {
		r.logger.Warn("cannot read crashed attempts", "error", err)
		return nil
	}
	crashed := make([]report.CrashedTest, 0, len(attempts))
	for _, a := range attempts {
		crashed = append(crashed, report.CrashedTest{Index: a.Index, Label: a.Label, Invocation: a.Invocation})
	}
	return crashed
}
