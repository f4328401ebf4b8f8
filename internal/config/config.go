// Package config loads tool configuration from an optional YAML file
// with environment variable overrides (prefix MEEG).
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config collects the settings of the command line tools.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Filter struct {
		// HighpassHz applied before epoching; zero disables.
		HighpassHz float64 `yaml:"highpass_hz" envconfig:"FILTER_HIGHPASS_HZ"`
		// LowpassHz applied before epoching; zero disables.
		LowpassHz float64 `yaml:"lowpass_hz" envconfig:"FILTER_LOWPASS_HZ"`
		// NotchHz removes power-line interference; zero disables.
		NotchHz float64 `yaml:"notch_hz" envconfig:"FILTER_NOTCH_HZ"`
	} `yaml:"filter"`

	Epochs struct {
		Tmin float64 `yaml:"tmin" envconfig:"EPOCHS_TMIN"`
		Tmax float64 `yaml:"tmax" envconfig:"EPOCHS_TMAX"`
	} `yaml:"epochs"`

	Report struct {
		Title string `yaml:"title" envconfig:"REPORT_TITLE"`
		// Output is the HTML file path.
		Output string `yaml:"output" envconfig:"REPORT_OUTPUT"`
	} `yaml:"report"`

	Server struct {
		Addr string `yaml:"addr" envconfig:"SERVER_ADDR"`
	} `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.LogLevel = "info"
	cfg.Filter.HighpassHz = 1
	cfg.Filter.LowpassHz = 40
	cfg.Epochs.Tmin = -0.2
	cfg.Epochs.Tmax = 0.5
	cfg.Report.Title = "M/EEG report"
	cfg.Report.Output = "report.html"
	cfg.Server.Addr = ":8080"
	return &cfg
}

// Load starts from the defaults, merges path (skipped when empty) and
// finally applies environment overrides. Variables that are not set in
// the environment leave the file values untouched.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Without default tags envconfig only touches fields whose
	// variables are present, so the file values survive.
	if err := envconfig.Process("meeg", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: unknown log level %q", cfg.LogLevel)
	}
	return cfg, nil
}
