package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.BatchWait == 0 {
		cfg.BatchWait = DefaultBatchWait
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Cache != nil && cfg.Cache.Mode == CacheModeLRU && cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultLRUSize
	}
	if cfg.Upstream.RequestTimeout == 0 {
		cfg.Upstream.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Upstream.ReconnectInterval == 0 {
		cfg.Upstream.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.Upstream.PingInterval == 0 {
		cfg.Upstream.PingInterval = DefaultPingInterval
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.BatchWait < 0 {
		return fmt.Errorf("batchWait must be non-negative")
	}

	if cfg.MaxBatchSize < 0 {
		return fmt.Errorf("maxBatchSize must be non-negative")
	}

	if cfg.Cache != nil {
		switch cfg.Cache.Mode {
		case "", CacheModeMemory, CacheModeOff:
		case CacheModeLRU:
			if cfg.Cache.Size <= 0 {
				return fmt.Errorf("cache.size must be positive in lru mode")
			}
		default:
			return fmt.Errorf("cache.mode must be one of: memory, lru, off")
		}
	}

	if cfg.Upstream.WSURL == "" {
		return errors.New("upstream.wsUrl is required")
	}

	if cfg.Upstream.RequestTimeout < 0 {
		return fmt.Errorf("upstream.requestTimeout must be non-negative")
	}

	if cfg.Upstream.ReconnectInterval < 0 {
		return fmt.Errorf("upstream.reconnectInterval must be non-negative")
	}

	if cfg.Upstream.PingInterval < 0 {
		return fmt.Errorf("upstream.pingInterval must be non-negative")
	}

	return nil
}
