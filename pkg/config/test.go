package config

import "time"

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.WatchDebounce = 100 * time.Millisecond
	cfg.WatchDrainInterval = 100 * time.Millisecond
}
