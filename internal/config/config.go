// Package config provides configuration loading and management for queuekit.
// It loads YAML files, expanding ${VAR} environment references first.
// Tuning values get defaults; connection parameters never do.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"queuekit/internal/queue"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// ReceiveSources lists, per backend kind, the sources HTTP clients may
	// receive from besides the backend's own destination.
	ReceiveSources map[string][]string `yaml:"receive_sources"`
}

// KafkaConfig holds Kafka connection and consumer settings.
type KafkaConfig struct {
	// Descriptor is the bootstrap broker and topic.
	queue.Descriptor `yaml:",inline"`

	// ConsumerGroup is the group joined by Receive. When empty every
	// subscription joins a fresh source-<uuid> group that is never reused;
	// the broker drops its offsets only after offsets.retention.minutes, so
	// long-running deployments should set a group.
	ConsumerGroup string `yaml:"consumer_group"`

	// MaxSubscriptions caps the readers one adapter keeps open. Opening a
	// new source beyond the cap closes the least recently used reader.
	MaxSubscriptions int `yaml:"max_subscriptions"`

	// StartOffset is where a new consumer group starts reading: "first" or "last".
	StartOffset string `yaml:"start_offset"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// AutoCreateTopic lets the writer create a missing topic.
	AutoCreateTopic bool `yaml:"auto_create_topic"`
}

// RabbitMQConfig holds RabbitMQ connection and queue settings.
type RabbitMQConfig struct {
	// Descriptor is the broker and queue name.
	queue.Descriptor `yaml:",inline"`

	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	VHost       string        `yaml:"vhost"`
	Durable     bool          `yaml:"durable"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from the specified YAML file path.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for tuning fields that are not
// explicitly set. Addresses and destinations are left alone.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// Kafka defaults
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = "first"
	}
	if cfg.Kafka.DialTimeout == 0 {
		cfg.Kafka.DialTimeout = 5 * time.Second
	}
	if cfg.Kafka.PollTimeout == 0 {
		cfg.Kafka.PollTimeout = 10 * time.Second
	}
	if cfg.Kafka.MaxSubscriptions == 0 {
		cfg.Kafka.MaxSubscriptions = 16
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 10 * time.Millisecond
	}

	// RabbitMQ defaults
	if cfg.RabbitMQ.DialTimeout == 0 {
		cfg.RabbitMQ.DialTimeout = 5 * time.Second
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// Validate checks that every required connection parameter is present.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Kafka.Descriptor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("kafka: %w", err))
	}
	if c.Kafka.StartOffset != "first" && c.Kafka.StartOffset != "last" {
		errs = append(errs, fmt.Errorf("kafka: start_offset must be \"first\" or \"last\", got %q", c.Kafka.StartOffset))
	}
	if err := c.RabbitMQ.Descriptor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rabbitmq: %w", err))
	}
	if c.Logger.Format != "json" && c.Logger.Format != "text" {
		errs = append(errs, fmt.Errorf("logger: format must be \"json\" or \"text\", got %q", c.Logger.Format))
	}

	return errors.Join(errs...)
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL returns the AMQP connection URL for the configured broker.
// Credentials are omitted when Username is empty and the vhost when VHost is
// empty, so the client library applies its own.
func (c *RabbitMQConfig) URL() string {
	u := url.URL{Scheme: "amqp", Host: c.Address}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.VHost != "" {
		u.Path = "/" + c.VHost
		u.RawPath = "/" + url.PathEscape(c.VHost)
	}
	return u.String()
}
