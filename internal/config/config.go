package config

import (
	"time"

	"github.com/rpattn/recordkeep/internal/db"
)

// Config is the full application configuration.
type Config struct {
	Database  db.Config       `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Export    ExportConfig    `mapstructure:"export"`
	Log       LogConfig       `mapstructure:"log"`
}

// RedisConfig configures the identifier cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0,max=15"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type IngestionConfig struct {
	Workers      int           `mapstructure:"workers" validate:"min=1,max=64"`
	PreviewLimit int           `mapstructure:"preview_limit" validate:"min=1,max=1000"`
	BatchWait    time.Duration `mapstructure:"batch_wait"`
}

type ExportConfig struct {
	PageSize int `mapstructure:"page_size" validate:"min=1,max=10000"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Ingestion: IngestionConfig{
			Workers:      4,
			PreviewLimit: 10,
			BatchWait:    5 * time.Millisecond,
		},
		Export: ExportConfig{
			PageSize: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
