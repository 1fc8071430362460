package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/flatframe"
	"github.com/rawbytedev/flatframe/zc"
)

// Config drives one harness run.
type Config struct {
	Builder flatframe.Options `yaml:"builder"`
	View    zc.Options        `yaml:"view"`
	// Codec names the frame compression: raw, zstd or snappy.
	Codec      string `yaml:"codec"`
	Records    int    `yaml:"records"`
	Iterations int    `yaml:"iterations"`
	// Profile is where the heap profile goes; empty disables it.
	Profile   string        `yaml:"profile"`
	PprofAddr string        `yaml:"pprof_addr"`
	LogLevel  string        `yaml:"log_level"`
	Hold      time.Duration `yaml:"hold"`
}

func defaultConfig() Config {
	return Config{
		Codec:      "raw",
		Records:    16,
		Iterations: 10000,
		LogLevel:   "info",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Records <= 0 || cfg.Iterations <= 0 {
		return cfg, errors.Errorf("records and iterations must be positive, got %d and %d", cfg.Records, cfg.Iterations)
	}
	return cfg, nil
}
