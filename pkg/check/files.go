package check

import (
	"errors"
	"io/fs"
	"os"
)

// FileExists fails if nothing exists at path at call time.
func (c *Checker) FileExists(description, path string) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return
	case errors.Is(err, fs.ErrNotExist):
		c.Fail(description, "file does not exist", "path: "+path)
	default:
		c.Fail(description, "file cannot be inspected", "path: "+path, "error: "+err.Error())
	}
}

// MakeEmptyFile creates path, or truncates it if it exists.
// A failure to do so is reported like a failed assertion.
func (c *Checker) MakeEmptyFile(description, path string) {
	f, err := os.Create(path)
	if err != nil {
		c.Fail(description, "cannot create file", "path: "+path, "error: "+err.Error())
		return
	}
	if err := f.Close(); err != nil {
		c.Fail(description, "cannot close file", "path: "+path, "error: "+err.Error())
	}
}

// RemoveFile deletes path. A missing file is not a failure.
func (c *Checker) RemoveFile(description, path string) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	c.Fail(description, "cannot remove file", "path: "+path, "error: "+err.Error())
}
