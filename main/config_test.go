package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
codec: zstd
records: 4
iterations: 20
hold: 2s
builder:
  initial_size: 64
  force_defaults: true
view:
  unsafe_strings: true
`), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "zstd", cfg.Codec)
	assert.Equal(t, 4, cfg.Records)
	assert.Equal(t, 2*time.Second, cfg.Hold)
	assert.Equal(t, 64, cfg.Builder.InitialSize)
	assert.True(t, cfg.Builder.ForceDefaults)
	assert.True(t, cfg.View.UnsafeStrings)
	assert.Equal(t, "info", cfg.LogLevel, "unset keys keep their defaults")

	require.NoError(t, os.WriteFile(path, []byte("records: 0\n"), 0o644))
	_, err = loadConfig(path)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	for _, codec := range []string{"raw", "zstd", "snappy"} {
		cfg := defaultConfig()
		cfg.Codec = codec
		cfg.Records = 3
		cfg.Iterations = 9
		cfg.View.UnsafeStrings = true

		log, hook := test.NewNullLogger()
		require.NoError(t, run(cfg, log), codec)
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		assert.Equal(t, 9, entry.Data["iterations"])
	}

	cfg := defaultConfig()
	cfg.Codec = "lz4"
	log, _ := test.NewNullLogger()
	assert.Error(t, run(cfg, log))
}
