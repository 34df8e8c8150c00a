package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv.
const (
	EnvDB             = "QUERYSTRAT_DB"
	EnvClassifierAddr = "CLASSIFIER_ADDR"
	EnvLogLevel       = "QUERYSTRAT_LOG_LEVEL"
	EnvLogFormat      = "QUERYSTRAT_LOG_FORMAT"

	DefaultDBPath = "querystrat.db"
)

// ErrInvalidSpec is returned for a strategy spec that names fields its
// strategy does not use.
var ErrInvalidSpec = errors.New("invalid strategy spec")

// #region types
// File is the on-disk configuration document.
type File struct {
	Strategy StrategySpec `yaml:"strategy"`
	Log      LogSpec      `yaml:"log,omitempty"`
}

// StrategySpec describes one strategy. Combiners nest their children in
// QS1 and QS2. The JSON form is used inside replay fixtures.
type StrategySpec struct {
	Name        string        `yaml:"name" json:"name"`
	Metric      string        `yaml:"metric,omitempty" json:"metric,omitempty"`
	ModelChange bool          `yaml:"model_change,omitempty" json:"model_change,omitempty"`
	Beta        string        `yaml:"beta,omitempty" json:"beta,omitempty"`     // "dynamic" or a number; default 1
	Lambda      string        `yaml:"lambda,omitempty" json:"lambda,omitempty"` // "dynamic" or a number in [0,1]; default 0.5
	Choice      string        `yaml:"choice,omitempty" json:"choice,omitempty"` // argmax | argmin
	Seed        *uint64       `yaml:"seed,omitempty" json:"seed,omitempty"`
	QS1         *StrategySpec `yaml:"qs1,omitempty" json:"qs1,omitempty"`
	QS2         *StrategySpec `yaml:"qs2,omitempty" json:"qs2,omitempty"`
}

// LogSpec selects logger level and format.
type LogSpec struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Process holds settings that come from the environment, overridable by flags.
type Process struct {
	DBPath         string
	ClassifierAddr string
	LogLevel       string
	LogFormat      string
}
// #endregion types

// #region load
// Load reads and decodes a configuration file. Unknown keys are rejected.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode config: %w", err)
	}
	if f.Strategy.Name == "" {
		return File{}, fmt.Errorf("config has no strategy name: %w", ErrInvalidSpec)
	}
	return f, nil
}

// Marshal renders a strategy spec back to YAML, for storing alongside a run.
func (s StrategySpec) Marshal() (string, error) {
	out, err := yaml.Marshal(File{Strategy: s})
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
// #endregion load

// #region env
// FromEnv reads process settings from the environment.
func FromEnv() Process {
	return Process{
		DBPath:         envOr(EnvDB, ""),
		ClassifierAddr: envOr(EnvClassifierAddr, ""),
		LogLevel:       envOr(EnvLogLevel, "info"),
		LogFormat:      envOr(EnvLogFormat, "text"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion env
