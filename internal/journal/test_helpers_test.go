package journal

import (
	"path/filepath"
	"testing"

	"github.com/roach88/relaunch/internal/testutil"
)

// createTestJournal opens a journal in a temp dir with a stepping clock.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, WithClock(testutil.NewStepClock().Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// fixedIDs hands out ids in order.
type fixedIDs struct {
	ids []string
}

func (f *fixedIDs) Generate() string {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}
