package config

import (
	"os"
	"time"
)

func loadProductionConfig(cfg *Config) {
	cfg.DatabaseFilePath = "/config/data.sqlite"
	cfg.WatchDebounce = 5 * time.Minute

	if path := os.Getenv("DATABASE_FILE_PATH"); path != "" {
		cfg.DatabaseFilePath = path
	}
}
