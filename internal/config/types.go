package config

import "time"

// CacheMode selects the loader's result cache implementation
type CacheMode string

const (
	// CacheModeMemory - unbounded in-memory cache (default)
	CacheModeMemory CacheMode = "memory"
	// CacheModeLRU - size-bounded LRU cache
	CacheModeLRU CacheMode = "lru"
	// CacheModeOff - no caching, no deduplication
	CacheModeOff CacheMode = "off"
)

// Default configuration values
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultLogLevel          = "info"
	DefaultBatchWait         = 10 // ms
	DefaultMaxBatchSize      = 100
	DefaultLRUSize           = 8192
	DefaultRequestTimeout    = 5000  // ms
	DefaultReconnectInterval = 3000  // ms
	DefaultPingInterval      = 30000 // ms
)

// Config represents the main configuration structure
type Config struct {
	Host         string         `json:"host"`
	Port         int            `json:"port"`
	LogLevel     string         `json:"logLevel"`
	BatchWait    int            `json:"batchWait"`    // ms - how long a batching window stays open
	MaxBatchSize int            `json:"maxBatchSize"` // keys per upstream call, 0 = unbounded
	Cache        *CacheConfig   `json:"cache,omitempty"`
	Upstream     UpstreamConfig `json:"upstream"`
}

// CacheConfig configures the loader's result cache
type CacheConfig struct {
	Mode CacheMode `json:"mode"`
	Size int       `json:"size"` // entries, lru mode only
}

// UpstreamConfig configures the bulk-fetch upstream connection
type UpstreamConfig struct {
	WSURL             string `json:"wsUrl"`
	RequestTimeout    int    `json:"requestTimeout"`    // ms - per fetch call
	ReconnectInterval int    `json:"reconnectInterval"` // ms - between reconnection attempts
	PingInterval      int    `json:"pingInterval"`      // ms - 0 disables pings
}

// GetBatchWaitDuration returns the batching window duration
func (c *Config) GetBatchWaitDuration() time.Duration {
	return time.Duration(c.BatchWait) * time.Millisecond
}

// CacheModeOrDefault returns the configured cache mode, defaulting to memory
func (c *Config) CacheModeOrDefault() CacheMode {
	if c.Cache == nil || c.Cache.Mode == "" {
		return CacheModeMemory
	}
	return c.Cache.Mode
}

// GetRequestTimeoutDuration returns the upstream request timeout
func (c *UpstreamConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetReconnectIntervalDuration returns the reconnect interval
func (c *UpstreamConfig) GetReconnectIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Millisecond
}

// GetPingIntervalDuration returns the ping interval
func (c *UpstreamConfig) GetPingIntervalDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Millisecond
}
