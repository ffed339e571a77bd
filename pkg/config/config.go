package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	ClassifierParallelThreshold int
	DatabaseConnectRetryCount   int
	DatabaseConnectRetryDelay   time.Duration
	DatabaseDebug               bool
	DatabaseFilePath            string
	Hostname                    string
	WatchDebounce               time.Duration
	WatchDrainInterval          time.Duration
	WorkerProcesses             int
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		ClassifierParallelThreshold: 100,
		DatabaseConnectRetryCount:   5,
		DatabaseConnectRetryDelay:   2 * time.Second,
		Hostname:                    hostname,
		WatchDrainInterval:          30 * time.Second,
		WorkerProcesses:             2,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	return cfg, nil
}
