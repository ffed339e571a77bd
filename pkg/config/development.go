package config

import (
	"os"
	"time"
)

func loadDevelopmentConfig(cfg *Config) {
	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/data.sqlite"
	cfg.WatchDebounce = 30 * time.Second

	if path := os.Getenv("DATABASE_FILE_PATH"); path != "" {
		cfg.DatabaseFilePath = path
	}
}
