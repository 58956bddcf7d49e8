package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"logcount/db"
	"logcount/offsets"
	"logcount/registry"
	"logcount/types"
)

func setDefaults() {
	viper.SetDefault("listen", "127.0.0.1:9184")
	viper.SetDefault("metrics_path", "/metrics")
	viper.SetDefault("interval", 100*time.Millisecond)
	viper.SetDefault("scrape_wait", 2*time.Second)
	viper.SetDefault("workers", 1)
	viper.SetDefault("watch", false)
	viper.SetDefault("log_dir", registry.DefaultLogDir())

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stderr")

	viper.SetDefault("offsets.backend", "memory")
	viper.SetDefault("offsets.file", "logcount-offsets.json")
	viper.SetDefault("offsets.flush_interval", 5*time.Second)
}

// loadSources compiles the configured sources, or the built-in list when the
// config has none.
func loadSources() ([]registry.Source, error) {
	var cfg []types.Source
	if err := viper.UnmarshalKey("sources", &cfg); err != nil {
		return nil, fmt.Errorf("error while retrieving source list from config: %w", err)
	}
	if len(cfg) == 0 {
		cfg = registry.Defaults()
	}
	return registry.Load(cfg, viper.GetString("log_dir"))
}

func postgresConfig() *db.Config {
	return &db.Config{
		Addr:     viper.GetString("offsets.postgres.addr"),
		Database: viper.GetString("offsets.postgres.database"),
		User:     viper.GetString("offsets.postgres.user"),
		Password: viper.GetString("offsets.postgres.password"),
	}
}

// openCheckpointer returns the configured offset checkpoint, or nil for the
// default in-memory store.
func openCheckpointer(ctx context.Context) (offsets.Checkpointer, error) {
	switch backend := viper.GetString("offsets.backend"); backend {
	case "", "memory":
		return nil, nil
	case "file":
		return offsets.NewFileCheckpoint(viper.GetString("offsets.file")), nil
	case "postgres":
		cfg := postgresConfig()
		if cfg.Addr == "" {
			return nil, fmt.Errorf("offsets.postgres.addr is required for the postgres backend")
		}
		cp, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := cp.EnsureSchema(); err != nil {
			cp.Close()
			return nil, fmt.Errorf("prepare checkpoint schema: %w", err)
		}
		return cp, nil
	default:
		return nil, fmt.Errorf("unknown offsets.backend %q: must be memory, file or postgres", backend)
	}
}
