package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig represents server configuration for the simple-asset service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	// DatabaseURL selects the record store: "memory", "postgres://...",
	// "postgresql://..." or "sqlite://path/to/file.db"
	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"true"`

	// StorageURL selects the storage backend: "memory://", "file:///path"
	// or "s3://bucket?region=...&endpoint=...&path_style=true&public_base_url=..."
	StorageURL         string `env:"STORAGE_URL" env-default:"memory://"`
	StorageURLPrefix   string `env:"STORAGE_URL_PREFIX"`
	ObjectKeyGenerator string `env:"OBJECT_KEY_GENERATOR" env-default:"sharded"`
	S3                 S3Credentials

	JWTSecret       string `env:"JWT_SECRET"`
	MaxRequestBytes int64  `env:"MAX_REQUEST_BYTES" env-default:"33554432"`

	MaxConcurrentUploads int64 `env:"MAX_CONCURRENT_UPLOADS" env-default:"16"`
	MaxQueuedUploads     int64 `env:"MAX_QUEUED_UPLOADS" env-default:"64"`
	Resilience           ResilienceEnv

	PendingCheckInterval time.Duration `env:"PENDING_CHECK_INTERVAL" env-default:"1m"`
	PendingStaleAfter    time.Duration `env:"PENDING_STALE_AFTER" env-default:"15m"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// S3Credentials are read from the standard AWS variables
type S3Credentials struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
}

// ResilienceEnv is the environment form of simpleasset.ResilienceConfig
type ResilienceEnv struct {
	MaxAttempts          uint          `env:"STORAGE_MAX_ATTEMPTS" env-default:"3"`
	InitialBackoff       time.Duration `env:"STORAGE_INITIAL_BACKOFF" env-default:"500ms"`
	MaxBackoff           time.Duration `env:"STORAGE_MAX_BACKOFF" env-default:"5s"`
	AttemptTimeout       time.Duration `env:"STORAGE_ATTEMPT_TIMEOUT" env-default:"30s"`
	FailureRateThreshold float64       `env:"BREAKER_FAILURE_RATE_THRESHOLD" env-default:"50"`
	SlidingWindowSize    int           `env:"BREAKER_SLIDING_WINDOW_SIZE" env-default:"10"`
	MinimumCalls         int           `env:"BREAKER_MINIMUM_CALLS" env-default:"5"`
	OpenCooldown         time.Duration `env:"BREAKER_OPEN_COOLDOWN" env-default:"30s"`
	HalfOpenCalls        int           `env:"BREAKER_HALF_OPEN_CALLS" env-default:"3"`
	HalfOpenSuccessRate  float64       `env:"BREAKER_HALF_OPEN_SUCCESS_RATE" env-default:"100"`
}

// ResilienceConfig converts the environment settings for the invoker
func (r ResilienceEnv) ResilienceConfig() simpleasset.ResilienceConfig {
	return simpleasset.ResilienceConfig{
		MaxAttempts:          r.MaxAttempts,
		InitialBackoff:       r.InitialBackoff,
		MaxBackoff:           r.MaxBackoff,
		AttemptTimeout:       r.AttemptTimeout,
		FailureRateThreshold: r.FailureRateThreshold,
		SlidingWindowSize:    r.SlidingWindowSize,
		MinimumCalls:         r.MinimumCalls,
		OpenCooldown:         r.OpenCooldown,
		HalfOpenCalls:        r.HalfOpenCalls,
		HalfOpenSuccessRate:  r.HalfOpenSuccessRate,
	}
}

// Load reads the environment with cleanenv and applies opts on top.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage returns a description of every environment variable, for --help.
func Usage() (string, error) {
	var cfg ServerConfig
	return cleanenv.GetDescription(&cfg, nil)
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := c.Database(); err != nil {
		return err
	}
	if _, err := c.Storage(); err != nil {
		return err
	}
	if _, err := objectkey.FromName(c.ObjectKeyGenerator); err != nil {
		return err
	}
	if err := c.Resilience.ResilienceConfig().Validate(); err != nil {
		return fmt.Errorf("invalid resilience settings: %w", err)
	}
	if c.MaxConcurrentUploads < 0 {
		return errors.New("max concurrent uploads must not be negative")
	}
	if c.MaxQueuedUploads < 0 {
		return errors.New("max queued uploads must not be negative")
	}
	if c.MaxRequestBytes < 0 {
		return errors.New("max request bytes must not be negative")
	}
	if c.PendingCheckInterval < 0 || c.PendingStaleAfter < 0 {
		return errors.New("pending monitor durations must not be negative")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL sets the record store URL
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = url
		return nil
	}
}

// WithStorageURL sets the storage backend URL
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = url
		return nil
	}
}

// WithObjectKeyGenerator sets the object key layout ("sharded" or "legacy")
func WithObjectKeyGenerator(name string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.FromName(name); err != nil {
			return err
		}
		c.ObjectKeyGenerator = name
		return nil
	}
}

// WithJWTSecret enables bearer authentication on the asset routes
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithResilience replaces the retry and circuit breaker settings
func WithResilience(r simpleasset.ResilienceConfig) Option {
	return func(c *ServerConfig) error {
		if err := r.Validate(); err != nil {
			return err
		}
		c.Resilience = ResilienceEnv{
			MaxAttempts:          r.MaxAttempts,
			InitialBackoff:       r.InitialBackoff,
			MaxBackoff:           r.MaxBackoff,
			AttemptTimeout:       r.AttemptTimeout,
			FailureRateThreshold: r.FailureRateThreshold,
			SlidingWindowSize:    r.SlidingWindowSize,
			MinimumCalls:         r.MinimumCalls,
			OpenCooldown:         r.OpenCooldown,
			HalfOpenCalls:        r.HalfOpenCalls,
			HalfOpenSuccessRate:  r.HalfOpenSuccessRate,
		}
		return nil
	}
}

// WithMaxConcurrentUploads bounds the background dispatcher
func WithMaxConcurrentUploads(n int64) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("max concurrent uploads must not be negative")
		}
		c.MaxConcurrentUploads = n
		return nil
	}
}

// WithMaxQueuedUploads bounds how many uploads may wait for a dispatcher slot
func WithMaxQueuedUploads(n int64) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("max queued uploads must not be negative")
		}
		c.MaxQueuedUploads = n
		return nil
	}
}

// WithAutoMigrate toggles schema creation during Build
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}
