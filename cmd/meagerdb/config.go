package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// configFileName is the developer-editable defaults file consulted by every
// subcommand before CLI flags and viper-bound environment variables are
// applied.
const configFileName = ".meagerdbrc"

// fileConfig mirrors the JSON-with-comments file on disk. Fields are
// pointers so an absent key in the file doesn't clobber a default with a
// zero value.
type fileConfig struct {
	Iterations *uint64 `json:"iterations,omitempty"`
	LogLevel   *string `json:"log_level,omitempty"`
}

// config is the resolved, defaulted configuration used by the rest of the
// CLI.
type config struct {
	Iterations uint64
	LogLevel   string
}

func defaultConfig() config {
	return config{
		Iterations: 200_000,
		LogLevel:   "info",
	}
}

// loadConfig reads path (defaulting to "./.meagerdbrc") if present, parsing
// it as JSONC via hujson, and layers it over the built-in defaults. A
// missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = configFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return config{}, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return config{}, err
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return config{}, err
	}

	if fc.Iterations != nil {
		cfg.Iterations = *fc.Iterations
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}

	return cfg, nil
}

// saveConfig atomically replaces path's contents with cfg encoded as
// indented JSON, so a concurrent reader never observes a half-written file.
func saveConfig(path string, cfg config) error {
	if path == "" {
		path = configFileName
	}

	fc := fileConfig{
		Iterations: &cfg.Iterations,
		LogLevel:   &cfg.LogLevel,
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}
