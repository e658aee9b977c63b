package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/luno/jettison/errors"
	"github.com/spf13/pflag"
)

// config holds the command configuration. Environment variables provide
// the defaults, flags override them.
type config struct {
	Addr          string        `env:"REPYABLE_ADDR"           envDefault:"127.0.0.1:7070"`
	Schema        string        `env:"REPYABLE_SCHEMA"`
	Name          string        `env:"REPYABLE_NAME"`
	BufferHint    int           `env:"REPYABLE_BUFFER_HINT"    envDefault:"1024"`
	QueueCapacity int           `env:"REPYABLE_QUEUE_CAPACITY" envDefault:"1024"`
	SnapshotURL   string        `env:"REPYABLE_SNAPSHOT_URL"`
	SnapshotKey   string        `env:"REPYABLE_SNAPSHOT_KEY"`
	RestorePrefix string        `env:"REPYABLE_RESTORE_PREFIX"`
	MetricsAddr   string        `env:"REPYABLE_METRICS_ADDR"`
	CursorsDSN    string        `env:"REPYABLE_CURSORS_DSN"`
	CursorsTable  string        `env:"REPYABLE_CURSORS_TABLE"  envDefault:"repyable_cursors"`
	Timeout       time.Duration `env:"REPYABLE_TIMEOUT"        envDefault:"10s"`
}

func loadConfig() (config, error) {
	var c config
	if err := env.Parse(&c); err != nil {
		return config{}, errors.Wrap(err, "parse env")
	}
	return c, nil
}

// bindGlobal binds the flags shared by all commands.
func (c *config) bindGlobal(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "Session server address")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Dial and health check timeout")
}
