// Package config loads hubmapy settings from YAML.
//
// The file is located through HUBMAPY_CONFIG, else ./hubmapy.yaml when it
// exists. Missing settings take the defaults from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hubmapy/internal/errs"
)

// Environment variables consulted by Load.
const (
	EnvConfig   = "HUBMAPY_CONFIG"
	EnvLogLevel = "HUBMAPY_LOG_LEVEL"
)

// DefaultFile is read from the working directory when EnvConfig is unset.
const DefaultFile = "hubmapy.yaml"

// Engine backends.
const (
	BackendRobot  = "robot"
	BackendBridge = "bridge"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config holds every setting the command line does not take as a flag.
type Config struct {
	// Ontology is a path or file: URI of the OWL ontology to reason over.
	Ontology string `yaml:"ontology"`

	// Output is the results directory; created if absent.
	Output string `yaml:"output"`

	// TimestampResults appends a UTC timestamp to result file names
	// instead of overwriting <name>.csv.
	TimestampResults bool `yaml:"timestamp_results"`

	// HistoryDB is the SQLite run history path. Empty disables history.
	HistoryDB string `yaml:"history_db"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// OutputFormat is text or json.
	OutputFormat string `yaml:"output_format"`

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig selects and configures the reasoning engine.
type EngineConfig struct {
	// Backend is robot (run the ROBOT command line per step) or bridge
	// (a long-lived engine process speaking JSON lines).
	Backend string `yaml:"backend"`

	// Command overrides the launcher. Required for the bridge backend.
	Command []string `yaml:"command,omitempty"`

	Reasoner        string   `yaml:"reasoner"`
	AxiomGenerators []string `yaml:"axiom_generators,omitempty"`

	// WorkDir keeps ROBOT intermediate files. Empty uses a temp dir.
	WorkDir string `yaml:"work_dir,omitempty"`

	// HandshakeTimeout bounds bridge startup.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Ontology:     "ontology/ccf.owl",
		Output:       ".",
		LogLevel:     "info",
		OutputFormat: "text",
		Engine: EngineConfig{
			Backend:          BackendRobot,
			Reasoner:         "ELK",
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

// Load resolves and reads the configuration file. Returns Default when
// no file is configured and ./hubmapy.yaml does not exist.
func Load() (Config, error) {
	path := os.Getenv(EnvConfig)
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(bytes.NewReader(data))
		if err != nil {
			return Config{}, errs.Wrap(errs.CodeConfig, "config.load", path, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, errs.Wrap(errs.CodeConfig, "config.load", "cannot read "+path, err)
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown fields are rejected so typos
// surface instead of being silently ignored. An empty document yields
// Default.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerations and required fields.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Ontology) == "" {
		problems = append(problems, "ontology is required")
	}
	if strings.TrimSpace(c.Output) == "" {
		problems = append(problems, "output is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if !isValidFormat(c.OutputFormat) {
		problems = append(problems, fmt.Sprintf("invalid output_format %q: must be one of %v", c.OutputFormat, ValidFormats))
	}
	switch c.Engine.Backend {
	case BackendRobot:
	case BackendBridge:
		if len(c.Engine.Command) == 0 {
			problems = append(problems, "engine.command is required for the bridge backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid engine.backend %q: must be robot or bridge", c.Engine.Backend))
	}
	if c.Engine.HandshakeTimeout < 0 {
		problems = append(problems, "engine.handshake_timeout must not be negative")
	}

	if len(problems) > 0 {
		return errs.New(errs.CodeConfig, "config.validate", strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps a log_level setting to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// NewLogger returns a text logger on w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
