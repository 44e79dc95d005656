// Package config loads relaunch configuration from YAML.
//
// A config file is optional. Fields left out keep their defaults, unknown
// fields are rejected, and the merged result is validated against an
// embedded CUE schema before use.
//
//	marker: relaunch.run
//	checkpoint: relaunch.lst
//	journal: relaunch.db
//	passes: 0
//	crash_policy: skip
//	driver:
//	  max_launches: 500
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "relaunch.yaml"

// Crash policies.
const (
	CrashPolicyRetry = "retry"
	CrashPolicySkip  = "skip"
)

// Config is the full relaunch configuration.
type Config struct {
	Marker        string `yaml:"marker" json:"marker"`
	Checkpoint    string `yaml:"checkpoint" json:"checkpoint"`
	Journal       string `yaml:"journal" json:"journal"` // empty disables the journal
	Report        string `yaml:"report" json:"report"`   // empty disables the JSON report
	Passes        int    `yaml:"passes" json:"passes"`
	MaxListed     int    `yaml:"max_listed" json:"max_listed"`
	CrashPolicy   string `yaml:"crash_policy" json:"crash_policy"`
	RecoverPanics bool   `yaml:"recover_panics" json:"recover_panics"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	Driver        Driver `yaml:"driver" json:"driver"`
}

// Driver configures the reference driver loop.
type Driver struct {
	MaxLaunches int    `yaml:"max_launches" json:"max_launches"`
	LogFile     string `yaml:"log_file" json:"log_file"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Marker:      "relaunch.run",
		Checkpoint:  "relaunch.lst",
		Passes:      0,
		MaxListed:   50,
		CrashPolicy: CrashPolicyRetry,
		LogLevel:    "warn",
		Driver: Driver{
			MaxLaunches: 1000,
			LogFile:     "relaunch.log",
		},
	}
}

// Level converts LogLevel to a slog level. Unknown names map to warn.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Issue is one schema violation.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every schema violation of a config.
type ValidationError struct {
	Source string  `json:"source"`
	Issues []Issue `json:"issues"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid config %s:", e.Source)
	for _, is := range e.Issues {
		if is.Field != "" {
			fmt.Fprintf(&b, "\n  %s: %s", is.Field, is.Message)
		} else {
			fmt.Fprintf(&b, "\n  %s", is.Message)
		}
	}
	return b.String()
}

// Load reads, merges over defaults and validates the config at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML data over the defaults and validates the result.
// source names the data in error messages.
func Parse(source string, data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", source, err)
	}

	if err := Validate(source, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded CUE schema.
// Returns a *ValidationError listing all violations.
func Validate(source string, cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(cfg))

	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{Source: source}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		verr.Issues = append(verr.Issues, Issue{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return verr
}
