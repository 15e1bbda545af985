// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relaydock/docrelay/internal/api"
	"github.com/relaydock/docrelay/internal/changesource"
	"github.com/relaydock/docrelay/internal/classify"
	"github.com/relaydock/docrelay/internal/config"
	"github.com/relaydock/docrelay/internal/deadletter"
	"github.com/relaydock/docrelay/internal/dispatch"
	"github.com/relaydock/docrelay/internal/history"
	"github.com/relaydock/docrelay/internal/metrics"
	"github.com/relaydock/docrelay/internal/pipeline"
	"github.com/relaydock/docrelay/internal/queue"
	"github.com/relaydock/docrelay/internal/registry"
	"github.com/relaydock/docrelay/internal/router"
	"github.com/relaydock/docrelay/internal/stats"
	"github.com/relaydock/docrelay/internal/store"
	"github.com/relaydock/docrelay/internal/transform"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func newCmdServer() *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the webhook relay server.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			return executeServerCmd(flags.toConfig(instanceID))
		},
		PreRun: func(command *cobra.Command, args []string) {
			if flags.debug {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	flags.addFlags(cmd)

	return cmd
}

// executeServerCmd wires every component spec §2's pipeline table names
// into one running server: it opens the relay's own bookkeeping store,
// connects to the external change feed, builds the classify → route →
// transform → enqueue → dispatch chain, mounts the management API, and
// runs until an interrupt triggers the shutdown sequence spec §5
// describes (close the source, stop the queue's polling loop, grace
// period for in-flight deliveries). The cursor needs no final flush: the
// pipeline persists it after every mutation.
func executeServerCmd(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger.Infof("Starting docrelay instance %s", cfg.InstanceID)

	sqlStore, err := store.New(cfg.StoreDSN, logger)
	if err != nil {
		return errors.Wrap(err, "failed to connect to store")
	}
	if err := sqlStore.Migrate(); err != nil {
		return errors.Wrap(err, "failed to migrate store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.ChangeSourceURI))
	if err != nil {
		return errors.Wrap(err, "failed to connect to change source")
	}
	defer func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.WithError(err).Warn("failed to disconnect change source client")
		}
	}()

	reg := registry.New(sqlStore, logger)
	if err := reg.Hydrate(); err != nil {
		return errors.Wrap(err, "failed to hydrate subscription registry")
	}

	classifier := classify.New()
	rt := router.New(reg)
	transformer := transform.New(cfg.ServiceName, cfg.ServiceVersion, cfg.InstanceID)

	promRegisterer := prometheus.DefaultRegisterer
	relayMetrics := metrics.New(promRegisterer)

	statistics := stats.New()
	hist := history.New(sqlStore, statistics, relayMetrics)

	dlq, err := deadletter.New(sqlStore, cfg.Queue.DeadLetterMaxSize, cfg.DeadLetter.RetentionDays, logger)
	if err != nil {
		return errors.Wrap(err, "failed to construct dead-letter store")
	}
	if err := dlq.Hydrate(); err != nil {
		return errors.Wrap(err, "failed to hydrate dead-letter store")
	}

	dispatcher := dispatch.New(dispatch.Config{
		UserAgent:         cfg.UserAgent,
		MaxRedirects:      cfg.MaxRedirects,
		MaxPayloadSize:    cfg.MaxPayloadSize,
		Timeout:           cfg.DeliveryTimeout(),
		WebhookSecretSalt: cfg.WebhookSecretSalt,
	}, logger)

	deliveryQueue := queue.New(queue.Config{
		MaxQueueSize:       cfg.Queue.MaxSize,
		MaxConcurrent:      cfg.Queue.MaxConcurrent,
		ProcessingInterval: cfg.Queue.ProcessingInterval(),
		DeliveryTimeout:    cfg.DeliveryTimeout(),
		JitterCapMs:        1000,
		MaxDelayCap:        cfg.Queue.MaxRetryDelay(),
	}, dispatcher, hist, dlq, logger)

	source := changesource.Open(mongoClient, cfg.ChangeSourceDatabase, logger)

	relayPipeline := pipeline.New(source, classifier, rt, transformer, deliveryQueue, sqlStore, sqlStore, statistics, logger, cfg.DropOnOverflow)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	deliveryQueue.Start(queueCtx)

	stopPurge := make(chan struct{})
	if cfg.DeadLetter.AutoCleanup {
		go dlq.RunPurgeLoop(stopPurge)
	}

	cursor, err := sqlStore.GetCursor()
	if err != nil {
		return errors.Wrap(err, "failed to load persisted cursor")
	}

	pipelineErrs := make(chan error, 1)
	go func() {
		pipelineErrs <- relayPipeline.Run(ctx, cursor)
	}()

	apiContext := &api.Context{
		Registry:    reg,
		Queue:       deliveryQueue,
		Store:       sqlStore,
		DeadLetter:  dlq,
		Classifier:  classifier,
		Transformer: transformer,
		Dispatcher:  dispatcher,
		QueueStatus: deliveryQueue,
		Metrics:     relayMetrics,
		Logger:      logger,
	}

	rootRouter := mux.NewRouter()
	api.Register(rootRouter, apiContext)
	rootRouter.Handle("/metrics", promhttp.HandlerFor(promRegisterer.(prometheus.Gatherer), promhttp.HandlerOpts{})).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Listening on %s", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("management API server failed")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-interrupt:
		logger.Info("received interrupt, shutting down")
	case err := <-pipelineErrs:
		if err != nil {
			logger.WithError(err).Error("pipeline stopped unexpectedly")
		}
	}

	close(stopPurge)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("management API server did not shut down cleanly")
	}

	deliveryStopped := make(chan struct{})
	go func() {
		deliveryQueue.Stop()
		close(deliveryStopped)
	}()
	select {
	case <-deliveryStopped:
	case <-shutdownCtx.Done():
		queueCancel()
		<-deliveryStopped
	}

	return nil
}
