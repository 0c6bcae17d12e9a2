package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Loop     LoopConfig     `toml:"loop"`
	Pool     PoolConfig     `toml:"pool"`
	Data     DataConfig     `toml:"data"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Name string `toml:"name"`
}

// DatabaseConfig: an empty DSN disables stats persistence.
type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type LoopConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`
	StatsInterval int           `toml:"stats_interval"` // ticks between stats snapshots
	MaxTicks      uint64        `toml:"max_ticks"`      // 0 = run until signalled
	Seed          int64         `toml:"seed"`           // spawner spread RNG, 0 = time based
}

type PoolConfig struct {
	InitialCapacity int  `toml:"initial_capacity"`
	Prewarm         bool `toml:"prewarm"` // honour per-spawn prewarm counts
}

type DataConfig struct {
	PrefabFile string `toml:"prefab_file"`
	SpawnFile  string `toml:"spawn_file"`
	Charset    string `toml:"charset"` // "utf-8" or "ms950"
	ScriptsDir string `toml:"scripts_dir"`
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Loop.TickRate <= 0 {
		return fmt.Errorf("loop.tick_rate must be positive")
	}
	if c.Loop.StatsInterval <= 0 {
		return fmt.Errorf("loop.stats_interval must be positive")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns must not exceed max_open_conns")
	}
	if c.Pool.InitialCapacity < 0 {
		return fmt.Errorf("pool.initial_capacity must not be negative")
	}
	if c.Data.PrefabFile == "" {
		return fmt.Errorf("data.prefab_file is required")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "spawnsim",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Loop: LoopConfig{
			TickRate:      200 * time.Millisecond,
			StatsInterval: 150, // 150 ticks × 200ms = 30 seconds
		},
		Pool: PoolConfig{
			InitialCapacity: 16,
			Prewarm:         true,
		},
		Data: DataConfig{
			PrefabFile: "data/yaml/prefab_list.yaml",
			SpawnFile:  "data/yaml/spawn_list.yaml",
			Charset:    "utf-8",
			ScriptsDir: "scripts/behaviour",
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
