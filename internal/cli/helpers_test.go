package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relaunch/pkg/check"
	"github.com/roach88/relaunch/pkg/runner"
)

// With helperEnv set, the test binary acts as a relaunch test program for
// the drive command instead of running the tests.
const (
	helperEnv = "RELAUNCH_CLI_HELPER"
	helperDir = "RELAUNCH_CLI_DIR"
)

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) != "" {
		helperMain(os.Getenv(helperDir))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func helperMain(dir string) {
	r := runner.New(
		runner.WithMarker(filepath.Join(dir, "relaunch.run")),
		runner.WithCheckpoint(filepath.Join(dir, "relaunch.lst")),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	r.RunTests(func(r *runner.Runner) {
		r.Run("passes", func(c *check.Checker) { c.True("yes", true) })
		r.Run("fails", func(c *check.Checker) { check.Equal(c, "answer", 41, 42) })
	})
}

// testEnv is a working directory with a config file pointing into it.
type testEnv struct {
	dir        string
	config     string
	marker     string
	checkpoint string
	journal    string
	log        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		config:     filepath.Join(dir, "relaunch.yaml"),
		marker:     filepath.Join(dir, "relaunch.run"),
		checkpoint: filepath.Join(dir, "relaunch.lst"),
		journal:    filepath.Join(dir, "relaunch.db"),
		log:        filepath.Join(dir, "relaunch.log"),
	}
	yaml := fmt.Sprintf("marker: %q\ncheckpoint: %q\njournal: %q\ndriver:\n  max_launches: 5\n  log_file: %q\n",
		env.marker, env.checkpoint, env.journal, env.log)
	require.NoError(t, os.WriteFile(env.config, []byte(yaml), 0o644))
	return env
}

// execute runs the root command with --config prepended.
func (e *testEnv) execute(args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData unmarshals the data field of a JSON success response.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
