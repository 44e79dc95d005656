// Package checkpoint persists runner progress across process launches.
//
// The on-disk format is a single human-readable line of three integers:
//
//	<last completed test> <failed assertions> <invocations>
//
// Writes go to a temporary file in the checkpoint's directory, are synced and
// closed, and only then renamed over the checkpoint. A process that dies in the
// middle of a write therefore leaves the previous checkpoint in place.
//
// Only one process may use a checkpoint at a time. Nothing here locks the
// file; the driver that launches test binaries serializes them.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPath is the checkpoint filename used when none is configured.
const DefaultPath = "relaunch.lst"

// ErrNotFound is returned by Load when no checkpoint exists.
var ErrNotFound = errors.New("checkpoint not found")

// State is the persisted progress of a test session.
type State struct {
	LastCompleted int // 1-based index of the last completed registration
	Failures      int // Failed assertions over the whole session
	Invocations   int // Requested process launches in this session
}

// Crashes is the number of launches beyond the first.
func (s State) Crashes() int {
	if s.Invocations < 1 {
		return 0
	}
	return s.Invocations - 1
}

// String renders the state in the checkpoint's file format.
func (s State) String() string {
	return fmt.Sprintf("%d %d %d\n", s.LastCompleted, s.Failures, s.Invocations)
}

// FormatError reports a checkpoint whose contents cannot be parsed.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed checkpoint %s: %s", e.Path, e.Reason)
}

// Parse decodes the checkpoint file format.
func Parse(path string, data []byte) (State, error) {
	fields := strings.Fields(string(data))
	if len(fields) != 3 {
		return State{}, &FormatError{Path: path, Reason: fmt.Sprintf("expected 3 integers, found %d fields", len(fields))}
	}

	var vals [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return State{}, &FormatError{Path: path, Reason: fmt.Sprintf("field %d: %v", i+1, err)}
		}
		if n < 0 {
			return State{}, &FormatError{Path: path, Reason: fmt.Sprintf("field %d is negative", i+1)}
		}
		vals[i] = n
	}

	return State{LastCompleted: vals[0], Failures: vals[1], Invocations: vals[2]}, nil
}

// Store loads and saves session state.
type Store interface {
	Load() (State, error)
	Save(State) error
	Clear() error
	Exists() bool
}

// FileStore keeps the state in a single text file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the checkpoint at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the checkpoint's location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the checkpoint. A missing file yields ErrNotFound, unparsable
// contents a *FormatError.
func (s *FileStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return Parse(s.path, data)
}

// Save replaces the checkpoint with st.
// It returns only after the new contents are synced, closed and renamed into
// place.
func (s *FileStore) Save(st State) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure below; after a successful rename
	// this is a no-op error that we ignore.
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(st.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Clear deletes the checkpoint. Clearing a missing checkpoint is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
