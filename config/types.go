package config

// FeedConfig locates the static schedule.
type FeedConfig struct {
	// Zip file, directory or http(s) URL.
	Static         string `yaml:"static" validate:"required"`
	Timezone       string `yaml:"timezone" validate:"omitempty,timezone"`
	StopIDLength   int    `yaml:"stopIDLength" validate:"gte=0"`
	StopNameSuffix string `yaml:"stopNameSuffix"`
	CacheFile      string `yaml:"cacheFile"`
	CacheTTLSec    int    `yaml:"cacheTTLSec" validate:"gte=0"`
}

// RealtimeConfig configures realtime polling.
type RealtimeConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BaseURL      string  `yaml:"baseURL" validate:"omitempty,url"`
	APIKey       string  `yaml:"apiKey" validate:"required_if=Enabled true"`
	Agency       string  `yaml:"agency" validate:"required"`
	MinDelaySec  int     `yaml:"minDelaySec" validate:"gte=0"`
	TimeoutSec   int     `yaml:"timeoutSec" validate:"gte=0"`
	RateLimitRPS float64 `yaml:"rateLimitRPS" validate:"gte=0"`
}

// StorageConfig picks where sessions are persisted.
type StorageConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory string `yaml:"directory" validate:"required_if=Backend sqlite"`
	DSN       string `yaml:"dsn" validate:"required_if=Backend postgres"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required,hostname_port"`
}

// LoggingConfig sets log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Feed     FeedConfig     `yaml:"feed" validate:"required"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}
