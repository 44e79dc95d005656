package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaunch/internal/config"
	"github.com/roach88/relaunch/internal/journal"
	"github.com/roach88/relaunch/internal/testutil"
	"github.com/roach88/relaunch/pkg/check"
)

func TestRun_NotRequested(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.Remove(ws.marker))

	rec := &recorder{}
	l := ws.launch(func(r *Runner) {
		r.Run("first", rec.test("first", nil))
	})

	assert.Empty(t, rec.ran)
	assert.False(t, l.exits.Called())
	assert.Empty(t, l.out.String())
	assert.Equal(t, NotRequested, l.runner.Phase())
	assert.NoFileExists(t, ws.checkpoint)
}

func TestFinalize_NotRequestedIsNoop(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.checkpoint, []byte("3 1 2\n"), 0o644))
	require.NoError(t, os.Remove(ws.marker))

	r, out, exits := ws.runner()
	r.Finalize()

	assert.False(t, exits.Called())
	assert.Empty(t, out.String())
	assert.Equal(t, "3 1 2\n", ws.readCheckpoint(), "checkpoint must be untouched")
}

func TestRunTests_DrainsInOneLaunch(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}

	l := ws.launch(func(r *Runner) {
		r.Run("first", rec.test("first", nil))
		r.Run("second", rec.test("second", nil))
		r.Run("third", rec.test("third", nil))
	})

	assert.Equal(t, []string{"first", "second", "third"}, rec.ran)
	assert.Equal(t, []int{0}, l.exits.Codes())
	assert.Contains(t, l.out.String(), "Test 2: second\n")
	assert.True(t, strings.HasSuffix(l.out.String(), summaryText(0, 0)), l.out.String())
	assert.Equal(t, Done, l.runner.Phase())
	assert.NoFileExists(t, ws.checkpoint)
}

func TestRunTests_SingleTestPerLaunch(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}
	suite := func(r *Runner) {
		r.Run("first", rec.test("first", nil))
		r.Run("second", rec.test("second", nil))
		r.Run("third", rec.test("third", nil))
	}

	l := ws.launch(suite, WithPasses(1))
	assert.Equal(t, []string{"first"}, rec.ran)
	assert.Equal(t, []int{0}, l.exits.Codes())
	assert.Equal(t, "1 0 1\n", ws.readCheckpoint())
	assert.NotContains(t, l.out.String(), "Test session complete")

	ws.launch(suite, WithPasses(1))
	assert.Equal(t, "2 0 2\n", ws.readCheckpoint())

	l = ws.launch(suite, WithPasses(1))
	assert.Equal(t, []string{"first", "second", "third"}, rec.ran)
	// Every relaunch counts as a crash in this mode.
	assert.Contains(t, l.out.String(), summaryText(0, 2))
	assert.NoFileExists(t, ws.checkpoint)
}

func TestRunTests_RetryCrashedResumes(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}
	crashes := 1
	suite := func(r *Runner) {
		r.Run("first", rec.test("first", nil))
		r.Run("second", rec.test("second", func(*check.Checker) {
			if crashes > 0 {
				crashes--
				panic(errCrash)
			}
		}))
		r.Run("third", rec.test("third", nil))
	}

	l := ws.launch(suite)
	require.True(t, l.crashed)
	assert.False(t, l.exits.Called())
	assert.Equal(t, Executing, l.runner.Phase())
	assert.Equal(t, "1 0 1\n", ws.readCheckpoint())

	l = ws.launch(suite)
	require.False(t, l.crashed)

	// Completed tests never run twice; the crashed one is retried.
	assert.Equal(t, []string{"first", "second", "second", "third"}, rec.ran)
	assert.NotContains(t, l.out.String(), "Test 1: first")
	assert.Contains(t, l.out.String(), summaryText(0, 1))
}

func TestRunTests_RetryCrashedRepeatsDeterministicCrash(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}
	suite := func(r *Runner) {
		r.Run("first", rec.test("first", nil))
		r.Run("always crashes", rec.test("always crashes", func(*check.Checker) {
			panic(errCrash)
		}))
	}

	for i := 0; i < 3; i++ {
		require.True(t, ws.launch(suite).crashed)
	}

	assert.Equal(t, []string{"first", "always crashes", "always crashes", "always crashes"}, rec.ran)
	assert.Equal(t, "1 0 3\n", ws.readCheckpoint())
}

func TestRunTests_SkipCrashedConsumesTest(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}
	suite := func(r *Runner) {
		r.Run("first", rec.test("first", nil))
		r.Run("always crashes", rec.test("always crashes", func(*check.Checker) {
			panic(errCrash)
		}))
		r.Run("third", rec.test("third", nil))
	}

	l := ws.launch(suite, WithCrashPolicy(SkipCrashed))
	require.True(t, l.crashed)
	assert.Equal(t, "2 0 1\n", ws.readCheckpoint())

	l = ws.launch(suite, WithCrashPolicy(SkipCrashed))
	require.False(t, l.crashed)
	assert.Equal(t, []string{"first", "always crashes", "third"}, rec.ran)
	assert.Contains(t, l.out.String(), summaryText(0, 1))
}

func TestRun_CheckpointWrittenBeforeBody(t *testing.T) {
	t.Run("retry", func(t *testing.T) {
		ws := newWorkspace(t)
		var seen string
		ws.launch(func(r *Runner) {
			r.Run("peek", func(*check.Checker) { seen = ws.readCheckpoint() })
		})
		assert.Equal(t, "0 0 1\n", seen, "launch must be counted before any body runs")
	})

	t.Run("skip", func(t *testing.T) {
		ws := newWorkspace(t)
		var seen string
		ws.launch(func(r *Runner) {
			r.Run("peek", func(*check.Checker) { seen = ws.readCheckpoint() })
		}, WithCrashPolicy(SkipCrashed))
		assert.Equal(t, "1 0 1\n", seen)
	})
}

func TestRun_FailuresAccumulateAcrossLaunches(t *testing.T) {
	ws := newWorkspace(t)
	crashed := false
	suite := func(r *Runner) {
		r.Run("one failure", func(c *check.Checker) {
			check.Equal(c, "answer", 41, 42)
		})
		r.Run("crash after failing", func(c *check.Checker) {
			if !crashed {
				crashed = true
				c.True("flag", false)
				panic(errCrash)
			}
		})
		r.Run("two failures", func(c *check.Checker) {
			c.FileExists("missing input", filepath.Join(ws.dir, "absent.dat"))
			check.EqualSeq(c, "ids", []int{1, 2, 3}, []int{1, 2, 4})
		})
	}

	require.True(t, ws.launch(suite).crashed)
	// The failure from the crashed body was never persisted.
	assert.Equal(t, "1 1 1\n", ws.readCheckpoint())

	l := ws.launch(suite)
	require.False(t, l.crashed)

	out := l.out.String()
	assert.Equal(t, 2, strings.Count(out, check.Marker))
	assert.Contains(t, out, "(3): 3 vs 4")
	assert.Contains(t, out, summaryText(3, 1))
}

func TestRun_IndexSkipsExactlyCompleted(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.checkpoint, []byte("2 5 4\n"), 0o644))

	rec := &recorder{}
	l := ws.launch(func(r *Runner) {
		for _, label := range []string{"a", "b", "c", "d"} {
			r.Run(label, rec.test(label, nil))
		}
	})

	assert.Equal(t, []string{"c", "d"}, rec.ran)
	assert.Equal(t, 5, l.runner.State().Invocations)
	assert.Contains(t, l.out.String(), summaryText(5, 4))
}

func TestRun_MalformedCheckpointStartsFresh(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.checkpoint, []byte("garbage\n"), 0o644))

	rec := &recorder{}
	l := ws.launch(func(r *Runner) {
		r.Run("a", rec.test("a", nil))
	})

	assert.Equal(t, []string{"a"}, rec.ran)
	assert.Contains(t, l.out.String(), summaryText(0, 0))
}

func TestRun_CheckpointWriteFailureIsCounted(t *testing.T) {
	ws := newWorkspace(t)

	l := ws.launch(func(r *Runner) {
		r.Run("a", func(*check.Checker) {})
	}, withStore(failingStore{}))

	out := l.out.String()
	// One failed save when the launch is counted, one after the body.
	assert.Equal(t, 2, strings.Count(out, "FAILED: checkpoint\n  cannot write checkpoint\n    error: disk full\n"))
	assert.Contains(t, out, summaryText(2, 0))
	assert.Equal(t, []int{0}, l.exits.Codes())
}

func TestRun_RecoverPanics(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}

	l := ws.launch(func(r *Runner) {
		r.Run("exploding", rec.test("exploding", func(*check.Checker) {
			panic("boom")
		}))
		r.Run("after", rec.test("after", nil))
	}, WithRecoverPanics(true))

	require.False(t, l.crashed)
	assert.Equal(t, []string{"exploding", "after"}, rec.ran)
	out := l.out.String()
	assert.Contains(t, out, "FAILED: exploding\n  test panicked\n    panic: boom\n")
	assert.Contains(t, out, summaryText(1, 0))
}

func TestRun_PhaseDuringBody(t *testing.T) {
	ws := newWorkspace(t)
	var during Phase

	l := ws.launch(func(r *Runner) {
		r.Run("observe", func(*check.Checker) { during = r.Phase() })
	})

	assert.Equal(t, Executing, during)
	assert.Equal(t, Done, l.runner.Phase())
}

func TestRunTests_EmptySuite(t *testing.T) {
	ws := newWorkspace(t)

	l := ws.launch(func(*Runner) {})

	assert.Equal(t, []int{0}, l.exits.Codes())
	assert.Contains(t, l.out.String(), summaryText(0, 0))
	assert.NoFileExists(t, ws.checkpoint)
}

func TestBeginSession_ComposesSuites(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}
	parser := func(r *Runner) {
		r.Run("parse a", rec.test("parse a", nil))
		r.Run("parse b", rec.test("parse b", nil))
	}
	solver := func(r *Runner) {
		r.Run("solve a", rec.test("solve a", nil))
		r.Run("solve b", rec.test("solve b", nil))
	}

	r, out, exits := ws.runner()
	r.BeginSession()
	passes := 0
	for {
		passes++
		r.RunTests(parser)
		r.RunTests(solver)
		if !r.Pending() {
			break
		}
		r.Rewind()
	}
	assert.False(t, exits.Called(), "RunTests must not finalize an owned session")
	r.Finalize()

	assert.Equal(t, 4, passes)
	assert.Equal(t, []string{"parse a", "parse b", "solve a", "solve b"}, rec.ran)
	assert.Contains(t, out.String(), "Test 3: solve a\n")
	assert.Equal(t, []int{0}, exits.Codes())
	assert.NoFileExists(t, ws.checkpoint)
}

func TestManualPasses(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}

	r, _, exits := ws.runner()
	r.Run("a", rec.test("a", nil))
	r.Run("b", rec.test("b", nil))
	assert.True(t, r.Pending())
	assert.Equal(t, []string{"a"}, rec.ran)

	r.Rewind()
	r.Run("a", rec.test("a", nil))
	r.Run("b", rec.test("b", nil))
	assert.False(t, r.Pending())
	r.Finalize()

	assert.Equal(t, []string{"a", "b"}, rec.ran)
	assert.Equal(t, []int{0}, exits.Codes())
}

func TestFinalize_PendingKeepsCheckpoint(t *testing.T) {
	ws := newWorkspace(t)

	r, out, exits := ws.runner()
	r.Run("a", func(*check.Checker) {})
	r.Run("b", func(*check.Checker) {})
	r.Finalize()

	assert.Equal(t, []int{0}, exits.Codes())
	assert.NotContains(t, out.String(), "Test session complete")
	assert.Equal(t, "1 0 1\n", ws.readCheckpoint())
}

func TestJournal_RecordsCrashedTests(t *testing.T) {
	ws := newWorkspace(t)
	dbPath := filepath.Join(ws.dir, "journal.db")
	opts := []Option{
		WithJournal(dbPath),
		withSessionIDs(testutil.NewSequentialIDs("")),
		withJournalOptions(journal.WithClock(testutil.NewStepClock().Now)),
	}
	crashes := 1
	suite := func(r *Runner) {
		r.Run("first", func(*check.Checker) {})
		r.Run("second", func(c *check.Checker) {
			if crashes > 0 {
				crashes--
				panic(errCrash)
			}
			c.False("ok", true)
		})
	}

	require.True(t, ws.launch(suite, opts...).crashed)
	l := ws.launch(suite, opts...)
	require.False(t, l.crashed)

	assert.Contains(t, l.out.String(), summaryText(1, 1)+"Crashed tests:\n  2 second (invocation 1)\n")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	sess, err := j.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-session-1", sess.ID)
	assert.True(t, sess.Finished())
	assert.Equal(t, 1, sess.Failures)
	assert.Equal(t, 2, sess.Invocations)

	attempts, err := j.Attempts(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.True(t, attempts[1].Crashed())
	assert.Equal(t, 1, attempts[2].Failures)
}

func TestJournal_ResetStartsNewSession(t *testing.T) {
	ws := newWorkspace(t)
	dbPath := filepath.Join(ws.dir, "journal.db")
	opts := []Option{
		WithJournal(dbPath),
		withSessionIDs(testutil.NewSequentialIDs("")),
	}
	suite := func(r *Runner) {
		r.Run("crash", func(*check.Checker) { panic(errCrash) })
	}

	require.True(t, ws.launch(suite, opts...).crashed)
	// The operator resets: the checkpoint is gone, the journal session is open.
	require.NoError(t, os.Remove(ws.checkpoint))
	require.True(t, ws.launch(suite, opts...).crashed)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	sessions, err := j.Sessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "test-session-2", sessions[0].ID)
	assert.True(t, sessions[1].Finished())
}

func TestJournal_UnavailableDoesNotStopRun(t *testing.T) {
	ws := newWorkspace(t)
	rec := &recorder{}

	l := ws.launch(func(r *Runner) {
		r.Run("a", rec.test("a", nil))
	}, WithJournal(filepath.Join(ws.dir, "missing", "dir", "journal.db")))

	assert.Equal(t, []string{"a"}, rec.ran)
	assert.Contains(t, l.out.String(), summaryText(0, 0))
}

func TestReport_WrittenOnFinalize(t *testing.T) {
	ws := newWorkspace(t)
	path := filepath.Join(ws.dir, "report.json")

	ws.launch(func(r *Runner) {
		r.Run("a", func(c *check.Checker) { c.True("nope", false) })
	}, WithReport(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"crashed_tests":[],"crashes":0,"failures":1,"invocations":1,"last_completed":1,"version":1}`+"\n",
		string(data))
}

func TestWithMaxListed(t *testing.T) {
	ws := newWorkspace(t)

	l := ws.launch(func(r *Runner) {
		r.Run("many", func(c *check.Checker) {
			check.EqualSeq(c, "zeros", []int{1, 2, 3}, []int{0, 0, 0})
		})
	}, WithMaxListed(1))

	assert.Contains(t, l.out.String(), "... 2 more not shown")
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Marker = "m.run"
	cfg.Checkpoint = "c.lst"
	cfg.Passes = 3
	cfg.CrashPolicy = config.CrashPolicySkip
	cfg.RecoverPanics = true
	cfg.MaxListed = 7

	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	r := New(opts...)

	assert.Equal(t, "m.run", r.marker)
	assert.Equal(t, 3, r.passes)
	assert.Equal(t, SkipCrashed, r.policy)
	assert.True(t, r.recoverPanics)
	assert.Equal(t, 7, r.maxListed)

	cfg.CrashPolicy = "sometimes"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}

func TestFromFile_Missing(t *testing.T) {
	opts, err := FromFile(filepath.Join(t.TempDir(), config.DefaultFile))
	require.NoError(t, err)

	r := New(opts...)
	assert.Equal(t, "relaunch.run", r.marker)
	assert.Equal(t, RetryCrashed, r.policy)
	assert.Equal(t, 0, r.passes)
}

func TestCrashPolicyNames(t *testing.T) {
	for _, p := range []CrashPolicy{RetryCrashed, SkipCrashed} {
		parsed, err := ParseCrashPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "CrashPolicy(9)", CrashPolicy(9).String())
}

func TestPhaseNames(t *testing.T) {
	assert.Equal(t, "not-requested", NotRequested.String())
	assert.Equal(t, "persisting", Persisting.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
