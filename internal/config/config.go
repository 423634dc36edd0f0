package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL          string
	NumFileWorkers       int
	NumSinkWorkers       int
	RecordsChannelSize   int
	SinkBatchSize        int
	SinkTimeout          time.Duration
	ProgressRowsInterval int64
	TopUnits             int
	ValidateTaxIDs       bool
	LogLevel             string
	LogFormat            string
}

func New() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		NumFileWorkers:       6,
		NumSinkWorkers:       2,
		RecordsChannelSize:   10000,
		SinkBatchSize:        5000,
		ProgressRowsInterval: 10000,
		TopUnits:             10,
		LogLevel:             os.Getenv("LOG_LEVEL"),
		LogFormat:            os.Getenv("LOG_FORMAT"),
	}

	var err error
	cfg.NumFileWorkers, err = getEnvAsInt("NUM_FILE_WORKERS", cfg.NumFileWorkers)
	if err != nil {
		return nil, err
	}

	cfg.NumSinkWorkers, err = getEnvAsInt("NUM_SINK_WORKERS", cfg.NumSinkWorkers)
	if err != nil {
		return nil, err
	}

	cfg.RecordsChannelSize, err = getEnvAsInt("RECORDS_CHANNEL_SIZE", cfg.RecordsChannelSize)
	if err != nil {
		return nil, err
	}

	cfg.SinkBatchSize, err = getEnvAsInt("SINK_BATCH_SIZE", cfg.SinkBatchSize)
	if err != nil {
		return nil, err
	}

	sinkTimeoutSeconds, err := getEnvAsInt("SINK_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.SinkTimeout = time.Duration(sinkTimeoutSeconds) * time.Second

	progressInterval, err := getEnvAsInt("PROGRESS_ROWS_INTERVAL", int(cfg.ProgressRowsInterval))
	if err != nil {
		return nil, err
	}
	cfg.ProgressRowsInterval = int64(progressInterval)

	cfg.TopUnits, err = getEnvAsInt("TOP_UNITS", cfg.TopUnits)
	if err != nil {
		return nil, err
	}

	cfg.ValidateTaxIDs, err = getEnvAsBool("VALIDATE_TAX_IDS", false)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}
