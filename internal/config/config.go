package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config represents the entire application configuration
type Config struct {
	Env         string            `json:"env"`
	Port        int               `json:"port"`
	AppName     string            `json:"app_name"`
	MongoDB     MongoDBConfig     `json:"mongodb"`
	Redis       RedisConfig       `json:"redis"`
	RabbitMQ    RabbitMQConfig    `json:"rabbitmq"`
	Queue       QueueConfig       `json:"queue"`
	Pipeline    PipelineConfig    `json:"pipeline"`
	Events      EventsConfig      `json:"events"`
	Oxylabs     OxylabsConfig     `json:"oxylabs"`
	JungleScout JungleScoutConfig `json:"junglescout"`
	AWS         AWSConfig         `json:"aws"`
	Logging     LoggingConfig     `json:"logging"`
	CORS        CORSConfig        `json:"cors"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// RabbitMQConfig contains the broker used for progress fan-out
type RabbitMQConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	VHost         string `json:"vhost"`
	ExchangeName  string `json:"exchange_name"`
	PrefetchCount int    `json:"prefetch_count"`
}

// QueueConfig controls the demand analysis job queue
type QueueConfig struct {
	Name        string `json:"name"`
	Concurrency int    `json:"concurrency"`
	// nil means the default; 0 disables redelivery
	MaxRetry         *int `json:"max_retry"`
	RetryBaseDelayMS int  `json:"retry_base_delay_ms"`
	// How long a completed task id is kept, blocking re-enqueue of the same report.
	RetentionMinutes int `json:"retention_minutes"`
}

// PipelineConfig holds the tunables of the three pipeline stages
type PipelineConfig struct {
	MaxBestSellerPages int `json:"max_best_seller_pages"`
	EnrichBatchSize    int `json:"enrich_batch_size"`
	EnrichBatchDelayMS int `json:"enrich_batch_delay_ms"`
	CacheTTLHours      int `json:"cache_ttl_hours"`
}

// EventsConfig selects the progress event transports
type EventsConfig struct {
	Redis    bool   `json:"redis"`
	RabbitMQ bool   `json:"rabbitmq"`
	Channel  string `json:"channel"`
}

// OxylabsConfig contains credentials for the category and best seller provider
type OxylabsConfig struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	BaseURL           string `json:"base_url"`
	Domain            string `json:"domain"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// JungleScoutConfig contains credentials for the sales estimate provider
type JungleScoutConfig struct {
	APIKey            string `json:"api_key"`
	BaseURL           string `json:"base_url"`
	Marketplace       string `json:"marketplace"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// AWSConfig configures the optional S3 report archive
type AWSConfig struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age,omitempty"` // Optional, seconds that preflight requests can be cached
}

// MongoDBConfig contains MongoDB connection details
type MongoDBConfig struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

// LoggingConfig contains logging-related configurations
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

const (
	defaultMaxRetry = 2

	// JungleScout accepts at most this many ASINs per sales estimate request
	maxEnrichBatchSize = 10
)

// LoadConfig reads configuration from the specified file path
func LoadConfig(filePath string) (*Config, error) {
	// Read the configuration file
	configData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config

	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills every zero tunable with the pipeline's production value
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.AppName == "" {
		c.AppName = "demand"
	}
	if c.MongoDB.DB == "" {
		c.MongoDB.DB = "demand"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "demand"
	}
	if c.RabbitMQ.ExchangeName == "" {
		c.RabbitMQ.ExchangeName = "report_updates"
	}

	if c.Queue.Name == "" {
		c.Queue.Name = "demand"
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 5
	}
	if c.Queue.MaxRetry == nil || *c.Queue.MaxRetry < 0 {
		retries := defaultMaxRetry
		c.Queue.MaxRetry = &retries
	}
	if c.Queue.RetryBaseDelayMS <= 0 {
		c.Queue.RetryBaseDelayMS = 5000
	}

	if c.Pipeline.MaxBestSellerPages <= 0 {
		c.Pipeline.MaxBestSellerPages = 2
	}
	if c.Pipeline.EnrichBatchSize <= 0 || c.Pipeline.EnrichBatchSize > maxEnrichBatchSize {
		c.Pipeline.EnrichBatchSize = maxEnrichBatchSize
	}
	if c.Pipeline.EnrichBatchDelayMS <= 0 {
		c.Pipeline.EnrichBatchDelayMS = 1200
	}
	if c.Pipeline.CacheTTLHours <= 0 {
		c.Pipeline.CacheTTLHours = 24
	}

	if c.Events.Channel == "" {
		c.Events.Channel = "report_update"
	}

	if c.Oxylabs.BaseURL == "" {
		c.Oxylabs.BaseURL = "https://realtime.oxylabs.io"
	}
	if c.Oxylabs.Domain == "" {
		c.Oxylabs.Domain = "com"
	}
	if c.Oxylabs.RequestsPerMinute <= 0 {
		c.Oxylabs.RequestsPerMinute = 60
	}
	if c.JungleScout.BaseURL == "" {
		c.JungleScout.BaseURL = "https://api.junglescout.com"
	}
	if c.JungleScout.Marketplace == "" {
		c.JungleScout.Marketplace = "us"
	}
	if c.JungleScout.RequestsPerMinute <= 0 {
		c.JungleScout.RequestsPerMinute = 50
	}
}

// Retries is the number of redeliveries after a failed attempt
func (q QueueConfig) Retries() int {
	if q.MaxRetry == nil {
		return defaultMaxRetry
	}
	return *q.MaxRetry
}

// RetryBaseDelay is the delay before the first redelivery
func (q QueueConfig) RetryBaseDelay() time.Duration {
	return time.Duration(q.RetryBaseDelayMS) * time.Millisecond
}

// Retention is how long a finished task is kept in the queue
func (q QueueConfig) Retention() time.Duration {
	return time.Duration(q.RetentionMinutes) * time.Minute
}

// EnrichBatchDelay is the pause between two sales estimate batches
func (p PipelineConfig) EnrichBatchDelay() time.Duration {
	return time.Duration(p.EnrichBatchDelayMS) * time.Millisecond
}

// CacheTTL is the lifetime of a cached best seller list
func (p PipelineConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLHours) * time.Hour
}

// ArchiveEnabled reports whether an S3 bucket is configured
func (a AWSConfig) ArchiveEnabled() bool {
	return a.Bucket != "" && a.Region != ""
}
