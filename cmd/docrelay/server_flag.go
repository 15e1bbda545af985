// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"github.com/relaydock/docrelay/internal/config"
	"github.com/spf13/cobra"
)

// serverFlags binds every knob spec §6 "Configuration (enumerated)"
// enumerates to a command-line flag, the same one-struct-per-command
// pattern teacher's serverFlags uses in cmd/cloud/server_flag.go.
type serverFlags struct {
	storeDSN             string
	changeSourceURI      string
	changeSourceDatabase string
	listenAddress        string
	apiKey               string
	webhookSecretSalt    string

	retryMaxAttempts       int
	retryBackoffMultiplier int
	retryInitialDelayMs    int

	queueMaxSize              int
	queueMaxConcurrent        int
	queueProcessingIntervalMs int
	queueDeadLetterMaxSize    int
	queueMaxRetryDelayMs      int

	deadLetterRetentionDays int
	deadLetterAutoCleanup   bool

	deliveryTimeoutMs int
	maxRedirects      int
	maxPayloadSize    int64
	userAgent         string

	serviceName    string
	serviceVersion string

	shutdownGraceMs int
	dropOnOverflow  bool

	debug bool
}

func (flags *serverFlags) addFlags(cmd *cobra.Command) {
	defaults := config.Default()

	cmd.Flags().StringVar(&flags.storeDSN, "store-dsn", "", "The relay's own bookkeeping database DSN (subscriptions, delivery history, dead-letter, cursor).")
	cmd.Flags().StringVar(&flags.changeSourceURI, "change-source-uri", "", "The connection URI of the document store whose change feed is relayed.")
	cmd.Flags().StringVar(&flags.changeSourceDatabase, "change-source-database", "", "The database within the change source to watch.")
	cmd.Flags().StringVar(&flags.listenAddress, "listen", defaults.ListenAddress, "The management API's bind address.")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "API key setting; the management API does not check it.")
	cmd.Flags().StringVar(&flags.webhookSecretSalt, "webhook-secret-salt", "", "Signing secret used for subscriptions that declare no secret of their own.")

	cmd.Flags().IntVar(&flags.retryMaxAttempts, "retry-max-attempts", defaults.Retry.MaxAttempts, "Server-wide maximum delivery attempts, validated at startup; subscriptions without their own retry policy use the built-in default of 5.")
	cmd.Flags().IntVar(&flags.retryBackoffMultiplier, "retry-backoff-multiplier", defaults.Retry.BackoffMultiplier, "Server-wide backoff multiplier, validated at startup; subscriptions without their own retry policy use the built-in default of 2.")
	cmd.Flags().IntVar(&flags.retryInitialDelayMs, "retry-initial-delay-ms", defaults.Retry.InitialDelayMs, "Server-wide initial retry delay in milliseconds, validated at startup; subscriptions without their own retry policy use the built-in default of 1000.")

	cmd.Flags().IntVar(&flags.queueMaxSize, "queue-max-size", defaults.Queue.MaxSize, "Maximum number of items the Delivery Queue holds at once.")
	cmd.Flags().IntVar(&flags.queueMaxConcurrent, "queue-max-concurrent", defaults.Queue.MaxConcurrent, "Maximum number of deliveries processed in parallel.")
	cmd.Flags().IntVar(&flags.queueProcessingIntervalMs, "queue-processing-interval-ms", defaults.Queue.ProcessingIntervalMs, "Interval in milliseconds between dispatcher polls.")
	cmd.Flags().IntVar(&flags.queueDeadLetterMaxSize, "queue-dead-letter-max-size", defaults.Queue.DeadLetterMaxSize, "Maximum size of the in-memory dead-letter mirror.")
	cmd.Flags().IntVar(&flags.queueMaxRetryDelayMs, "queue-max-retry-delay-ms", defaults.Queue.MaxRetryDelayMs, "Upper bound on a single retry's computed delay.")

	cmd.Flags().IntVar(&flags.deadLetterRetentionDays, "dead-letter-retention-days", defaults.DeadLetter.RetentionDays, "Days a dead-letter entry is retained before the purge task evicts it.")
	cmd.Flags().BoolVar(&flags.deadLetterAutoCleanup, "dead-letter-auto-cleanup", defaults.DeadLetter.AutoCleanup, "Whether the hourly dead-letter purge task runs automatically.")

	cmd.Flags().IntVar(&flags.deliveryTimeoutMs, "delivery-timeout-ms", defaults.DeliveryTimeoutMs, "Per-attempt HTTP delivery timeout in milliseconds.")
	cmd.Flags().IntVar(&flags.maxRedirects, "max-redirects", defaults.MaxRedirects, "Maximum redirects the HTTP Dispatcher follows.")
	cmd.Flags().Int64Var(&flags.maxPayloadSize, "max-payload-size", defaults.MaxPayloadSize, "Maximum response body size, in bytes, the HTTP Dispatcher reads before failing.")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", defaults.UserAgent, "User-Agent header sent with every delivery.")

	cmd.Flags().StringVar(&flags.serviceName, "service-name", defaults.ServiceName, "Service name reported in payload.source.service.")
	cmd.Flags().StringVar(&flags.serviceVersion, "service-version", defaults.ServiceVersion, "Service version reported in payload.source.version.")

	cmd.Flags().IntVar(&flags.shutdownGraceMs, "shutdown-grace-ms", defaults.ShutdownGraceMs, "Milliseconds in-flight deliveries are given to finish before cancellation on shutdown.")

	cmd.Flags().BoolVar(&flags.dropOnOverflow, "drop-on-overflow", defaults.DropOnOverflow, "When the Delivery Queue is full, record the mutation to the unroutable log and advance the cursor instead of holding it back for redelivery.")

	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Whether to output debug logs.")

	_ = cmd.MarkFlagRequired("store-dsn")
	_ = cmd.MarkFlagRequired("change-source-uri")
	_ = cmd.MarkFlagRequired("change-source-database")
}

func (flags *serverFlags) toConfig(instanceID string) config.Config {
	cfg := config.Default()
	cfg.StoreDSN = flags.storeDSN
	cfg.ChangeSourceURI = flags.changeSourceURI
	cfg.ChangeSourceDatabase = flags.changeSourceDatabase
	cfg.ListenAddress = flags.listenAddress
	cfg.APIKey = flags.apiKey
	cfg.WebhookSecretSalt = flags.webhookSecretSalt

	cfg.Retry = config.RetryDefaults{
		MaxAttempts:       flags.retryMaxAttempts,
		BackoffMultiplier: flags.retryBackoffMultiplier,
		InitialDelayMs:    flags.retryInitialDelayMs,
	}
	cfg.Queue = config.QueueConfig{
		MaxSize:              flags.queueMaxSize,
		MaxConcurrent:         flags.queueMaxConcurrent,
		ProcessingIntervalMs: flags.queueProcessingIntervalMs,
		DeadLetterMaxSize:    flags.queueDeadLetterMaxSize,
		MaxRetryDelayMs:      flags.queueMaxRetryDelayMs,
	}
	cfg.DeadLetter = config.DeadLetterConfig{
		RetentionDays: flags.deadLetterRetentionDays,
		AutoCleanup:   flags.deadLetterAutoCleanup,
		Persistence:   "sql",
	}

	cfg.DeliveryTimeoutMs = flags.deliveryTimeoutMs
	cfg.MaxRedirects = flags.maxRedirects
	cfg.MaxPayloadSize = flags.maxPayloadSize
	cfg.UserAgent = flags.userAgent

	cfg.ServiceName = flags.serviceName
	cfg.ServiceVersion = flags.serviceVersion
	cfg.InstanceID = instanceID

	cfg.ShutdownGraceMs = flags.shutdownGraceMs
	cfg.DropOnOverflow = flags.dropOnOverflow

	return cfg
}
