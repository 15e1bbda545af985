// Package config gathers the relay's enumerated runtime configuration
// (spec §6 "Configuration") into one struct so that flags, environment
// variables, and hard-coded defaults all funnel through a single typed
// surface the way teacher's cmd/cloud/server_flag.go funnels its flags
// into provisioner.NewPGBouncerConfig and friends before the server ever
// starts.
package config

import (
	"time"

	"github.com/pkg/errors"
)

// RetryDefaults holds the server-wide retry settings, which Validate
// checks at startup. They are not applied to subscriptions: one that
// declares no retry policy of its own gets model.DefaultRetryPolicy().
type RetryDefaults struct {
	MaxAttempts       int
	BackoffMultiplier int
	InitialDelayMs    int
}

// QueueConfig mirrors spec §6's Queue block.
type QueueConfig struct {
	MaxSize             int
	MaxConcurrent       int
	ProcessingIntervalMs int
	DeadLetterMaxSize   int
	MaxRetryDelayMs     int
}

// DeadLetterConfig mirrors spec §6's Dead-letter block.
type DeadLetterConfig struct {
	RetentionDays int
	AutoCleanup   bool
	// Persistence names the durable backing store; "sql" is the only
	// value this build supports (internal/store.SQLStore).
	Persistence string
}

// RateLimitConfig holds the management-surface rate-limit settings (spec
// §6). Nothing in this build consults it: neither the management API nor
// the delivery pipeline limits request rates.
type RateLimitConfig struct {
	WindowMs   int
	MaxRequests int
}

// Config is every knob spec §6 enumerates, with the exception of "log
// level and sinks" which is handled by the embedding program's own
// logrus setup (spec §9 "no module-level singletons in the core").
type Config struct {
	// Store is the relay's own bookkeeping database (subscriptions,
	// delivery_attempts, events, dead_letter_queue, cursor) -- a
	// connection string understood by internal/store.New.
	StoreDSN string

	// ChangeSourceURI and ChangeSourceDatabase address the external
	// document store's change feed (internal/changesource.Open).
	ChangeSourceURI      string
	ChangeSourceDatabase string

	// APIKey is accepted as configuration only; nothing in this build
	// checks it, and the management API serves requests without it
	// (spec §1 "Out of scope: Authentication ... at the management
	// surface").
	APIKey string

	// WebhookSecretSalt signs deliveries for subscriptions that
	// declare no per-webhook secret of their own.
	WebhookSecretSalt string

	Retry      RetryDefaults
	Queue      QueueConfig
	DeadLetter DeadLetterConfig
	RateLimit  RateLimitConfig

	DeliveryTimeoutMs int
	MaxRedirects      int
	MaxPayloadSize    int64
	UserAgent         string

	// ListenAddress is the management API's bind address, e.g. ":8087".
	ListenAddress string

	// ServiceName/ServiceVersion/InstanceID populate payload.source
	// (spec §4.5).
	ServiceName    string
	ServiceVersion string
	InstanceID     string

	// ShutdownGraceMs bounds how long in-flight deliveries are given
	// to finish on shutdown before being cancelled (spec §5).
	ShutdownGraceMs int

	// DropOnOverflow selects the backpressure policy spec §5 describes
	// for a full Delivery Queue. False (the default) propagates
	// queue-full back to the Change Source so the cursor does not
	// advance past the mutation, giving at-least-once redelivery on
	// restart. True records the mutation to the unroutable log instead
	// and advances the cursor anyway, trading delivery for throughput.
	DropOnOverflow bool
}

// Default returns the configuration spec §4.6/§4.7/§4.9 document as
// defaults, with empty connection strings the caller must fill in.
func Default() Config {
	return Config{
		Retry: RetryDefaults{MaxAttempts: 5, BackoffMultiplier: 2, InitialDelayMs: 1000},
		Queue: QueueConfig{
			MaxSize:              10000,
			MaxConcurrent:        10,
			ProcessingIntervalMs: 250,
			DeadLetterMaxSize:    5000,
			MaxRetryDelayMs:      300000,
		},
		DeadLetter: DeadLetterConfig{RetentionDays: 30, AutoCleanup: true, Persistence: "sql"},
		RateLimit:  RateLimitConfig{WindowMs: 60000, MaxRequests: 600},

		DeliveryTimeoutMs: 30000,
		MaxRedirects:      5,
		MaxPayloadSize:    1 << 20,
		UserAgent:         "docrelay-webhook/1.0",

		ListenAddress: ":8087",

		ServiceName:    "docrelay",
		ServiceVersion: "dev",

		ShutdownGraceMs: 30000,
	}
}

// Validate enforces the bounds spec §3/§4 place on the retry and queue
// knobs so a misconfigured server fails fast at startup rather than
// misbehaving the first time a delivery is scheduled.
func (c Config) Validate() error {
	if c.StoreDSN == "" {
		return errors.New("store DSN must not be empty")
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return errors.Errorf("retry.maxAttempts must be between 1 and 10, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffMultiplier < 1 || c.Retry.BackoffMultiplier > 10 {
		return errors.Errorf("retry.backoffMultiplier must be between 1 and 10, got %d", c.Retry.BackoffMultiplier)
	}
	if c.Retry.InitialDelayMs < 100 {
		return errors.Errorf("retry.initialDelayMs must be at least 100, got %d", c.Retry.InitialDelayMs)
	}
	if c.Queue.MaxSize <= 0 {
		return errors.New("queue.maxSize must be positive")
	}
	if c.Queue.MaxConcurrent <= 0 {
		return errors.New("queue.maxConcurrent must be positive")
	}
	if c.DeliveryTimeoutMs <= 0 {
		return errors.New("deliveryTimeoutMs must be positive")
	}
	if c.MaxPayloadSize <= 0 {
		return errors.New("maxPayloadSize must be positive")
	}
	return nil
}

// ProcessingInterval is Queue.ProcessingIntervalMs as a time.Duration.
func (q QueueConfig) ProcessingInterval() time.Duration {
	return time.Duration(q.ProcessingIntervalMs) * time.Millisecond
}

// MaxRetryDelay is Queue.MaxRetryDelayMs as a time.Duration.
func (q QueueConfig) MaxRetryDelay() time.Duration {
	return time.Duration(q.MaxRetryDelayMs) * time.Millisecond
}

// DeliveryTimeout is DeliveryTimeoutMs as a time.Duration.
func (c Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutMs) * time.Millisecond
}

// ShutdownGrace is ShutdownGraceMs as a time.Duration.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}
