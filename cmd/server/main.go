package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/orderlab/config"
	"github.com/erain9/orderlab/pkg/compare"
	"github.com/erain9/orderlab/pkg/db/queue"
	"github.com/erain9/orderlab/pkg/logging"
	"github.com/erain9/orderlab/pkg/messaging"
	"github.com/erain9/orderlab/pkg/messaging/kafka"
	"github.com/erain9/orderlab/pkg/otel"
	"github.com/erain9/orderlab/pkg/server"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
)

const serviceVersion = "0.1.0"

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
	})
	logger := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Otel.ServiceName,
		ServiceVersion:   serviceVersion,
		Endpoint:         cfg.Otel.Endpoint,
		CollectorEnabled: cfg.Otel.Enabled,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Otel.RuntimeMetrics {
		if err := otel.StartRuntimeMetrics(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	storeLog, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = storeLog.Sync() }()

	sender := newReportSender(cfg, logger)
	if sender != nil {
		defer sender.Close()
	}

	if cfg.Kafka.Enabled && cfg.Kafka.Consume {
		stopConsumer := startReportConsumer(ctx, cfg, logger)
		defer stopConsumer()
	}

	manager, httpServer, err := newServer(ctx, cfg, sender, storeLog)
	if err != nil {
		return err
	}
	defer manager.Close()

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	return nil
}

// newServer builds the desk manager with its default memory desk and the
// HTTP front end
func newServer(ctx context.Context, cfg *config.Config, sender messaging.ReportSender, storeLog *zap.Logger) (*server.DeskManager, *server.HTTPServer, error) {
	manager := server.NewDeskManager(cfg.Generator, storeLog)
	manager.SetStoreDefaults(server.StoreDefaults{
		RedisAddr:        cfg.Redis.Addr,
		RedisPassword:    cfg.Redis.Password,
		RedisDB:          cfg.Redis.DB,
		PostgresURL:      cfg.Postgres.URL,
		PostgresMaxConns: cfg.Postgres.MaxConns,
	})

	info, err := manager.CreateMemoryDesk(ctx, cfg.Server.DefaultDesk)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}
	server.LogDeskSummary(*zerolog.Ctx(ctx), info)

	service := server.NewDeskService(manager, sender, compare.Options{
		Sizes:     cfg.Compare.Sizes,
		Runs:      cfg.Compare.Runs,
		Generator: cfg.Generator,
	})

	httpServer := server.NewHTTPServer(service, cfg.Server.DefaultDesk)
	httpServer.SetMaxGenerate(cfg.Server.MaxGenerate)
	return manager, httpServer, nil
}

// newReportSender returns the configured run report publisher, or nil when
// publishing is disabled or the transport cannot be created
func newReportSender(cfg *config.Config, logger zerolog.Logger) messaging.ReportSender {
	if !cfg.Kafka.Enabled {
		return nil
	}

	var (
		sender messaging.ReportSender
		err    error
	)
	switch cfg.Kafka.Transport {
	case config.TransportSarama:
		opts := queue.Options{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}
		sender, err = queue.NewSenderPool(cfg.Kafka.PoolSize, func() (messaging.ReportSender, error) {
			s, err := queue.NewQueueReportSender(opts)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	default:
		sender, err = kafka.NewKafkaReportSender(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	if err != nil {
		logger.Warn().Err(err).Str("transport", cfg.Kafka.Transport).Msg("Failed to create report sender - continuing without Kafka support")
		return nil
	}

	logger.Info().
		Str("transport", cfg.Kafka.Transport).
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("Publishing run reports")
	return sender
}

// startReportConsumer starts the developer consumer that pretty prints run
// reports and returns its stop function
func startReportConsumer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) func() {
	if cfg.Kafka.Transport == config.TransportSarama {
		consumer, err := queue.NewQueueReportConsumer(queue.Options{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
			return func() {}
		}
		go func() {
			err := consumer.ConsumeRunReports(func(report *messaging.RunReport) error {
				logger.Info().
					Str("desk", report.Desk).
					Str("algorithm", report.Algorithm).
					Int("steps", report.Steps).
					Msg("Received run report")
				return nil
			})
			if err != nil {
				logger.Error().Err(err).Msg("Kafka consumer error")
			}
		}()
		return func() { _ = consumer.Close() }
	}

	consumer, err := kafka.SetupConsumer(ctx, logger, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	if err != nil {
		return func() {}
	}
	return func() { _ = consumer.Close() }
}
