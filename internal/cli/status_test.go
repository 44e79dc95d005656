package cli

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaunch/internal/journal"
	"github.com/roach88/relaunch/internal/testutil"
)

func TestStatus_NoSession(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute("--format", "json", "status")
	require.NoError(t, err)

	var res StatusResult
	decodeData(t, out, &res)
	assert.False(t, res.Requested)
	assert.False(t, res.InProgress)
	assert.Nil(t, res.Session)
}

func TestStatus_InProgress(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.marker, nil, 0o644))
	require.NoError(t, os.WriteFile(env.checkpoint, []byte("2 1 3\n"), 0o644))

	j, err := journal.Open(env.journal, journal.WithClock(testutil.NewStepClock().Now))
	require.NoError(t, err)
	_, err = j.OpenSession(context.Background(), testutil.NewSequentialIDs("status"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, err := env.execute("--format", "json", "status")
	require.NoError(t, err)

	var res StatusResult
	decodeData(t, out, &res)
	assert.True(t, res.Requested)
	assert.True(t, res.InProgress)
	assert.Equal(t, 2, res.LastCompleted)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 3, res.Invocations)
	assert.Equal(t, 2, res.Crashes)
	require.NotNil(t, res.Session)
	assert.Equal(t, "status-1", res.Session.ID)
	assert.Nil(t, res.Session.FinishedAt)

	text, err := env.execute("status")
	require.NoError(t, err)
	assert.Contains(t, text, "Last completed test")
	assert.Contains(t, text, "status-1")
}

func TestStatus_MalformedCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.checkpoint, []byte("one two\n"), 0o644))

	_, err := env.execute("status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus_MissingJournalIsNotAnError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute("status")
	require.NoError(t, err)
	assert.NoFileExists(t, env.journal, "status must not create a journal")
}
