package main

import (
	"testing"
	"time"

	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	jtest.RequireNil(t, err)

	require.Equal(t, "127.0.0.1:7070", cfg.Addr)
	require.Equal(t, 1024, cfg.BufferHint)
	require.Equal(t, 1024, cfg.QueueCapacity)
	require.Equal(t, "repyable_cursors", cfg.CursorsTable)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Empty(t, cfg.SnapshotURL)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("REPYABLE_ADDR", "127.0.0.1:9000")
	t.Setenv("REPYABLE_SCHEMA", "value:7:uint")
	t.Setenv("REPYABLE_QUEUE_CAPACITY", "8")
	t.Setenv("REPYABLE_TIMEOUT", "1m")

	cfg, err := loadConfig()
	jtest.RequireNil(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Addr)
	require.Equal(t, "value:7:uint", cfg.Schema)
	require.Equal(t, 8, cfg.QueueCapacity)
	require.Equal(t, time.Minute, cfg.Timeout)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("REPYABLE_BUFFER_HINT", "lots")

	_, err := loadConfig()
	require.Error(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("REPYABLE_ADDR", "127.0.0.1:9000")

	cfg, err := loadConfig()
	jtest.RequireNil(t, err)

	root := newRootCommand(&cfg)
	jtest.RequireNil(t, root.PersistentFlags().Parse([]string{"--addr", "127.0.0.1:9001"}))
	require.Equal(t, "127.0.0.1:9001", cfg.Addr)
}
