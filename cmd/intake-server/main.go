package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"consult-intake/internal/api"
	"consult-intake/internal/common/config"
	"consult-intake/internal/common/database"
	httpclient "consult-intake/internal/common/http"
	"consult-intake/internal/common/logger"
	"consult-intake/internal/common/observability"
	"consult-intake/internal/common/payment"
	"consult-intake/internal/intake/draft"
	"consult-intake/internal/intake/reconciliation"
	"consult-intake/internal/intake/steps"
	"consult-intake/internal/intake/submission"
	"consult-intake/internal/intake/webhook"
	"consult-intake/internal/notification"
	"consult-intake/internal/repository"
	"consult-intake/migrations"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(
		zap.String("service", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake server...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	stmts, err := migrations.Statements()
	if err != nil {
		zapLog.Fatal("read migrations", zap.Error(err))
	}
	if err := pg.ApplySchema(ctx, stmts...); err != nil {
		zapLog.Fatal("apply migrations", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected and schema applied")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch ---
	var es *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch, httpclient.NewLoggingTransport(nil, log))
			if err != nil {
				return err
			}
			return es.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	repo := repository.NewConsultationRepository(pg.DB)

	// --- Notifications ---
	notifier, err := newNotifications(ctx, cfg, repo, es, zapLog, log)
	if err != nil {
		zapLog.Fatal("notification setup failed", zap.Error(err))
	}
	defer notifier.Close()
	dispatcher := notification.NewDetached(notifier.Dispatcher(), log)

	// --- Intake services ---
	table := steps.Default()
	gateway := payment.NewStripeGateway(cfg.Payment, httpclient.NewClient(config.GetDuration(cfg.Payment.Timeout), log), log)
	submitter := submission.NewService(table, repo, gateway, cfg.Payment, obs, log)
	reconciler := reconciliation.NewService(repo, dispatcher, cfg.Reconciliation, cfg.Notifications.SupportEmail, obs, log)
	webhooks := webhook.NewService(gateway, repo, dispatcher, log)
	drafts := draft.NewStore(rdb.Client, cfg.Draft, log)

	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}
	if es != nil {
		checks["elasticsearch"] = func(context.Context) error { return es.Ping() }
	}
	if hc := notifier.HealthCheck(); hc != nil {
		checks["camunda"] = hc
	}

	router := api.NewRouter(api.Handlers{
		Wizard:  api.NewWizardHandler(table, drafts, submitter.Submit, log, time.Now),
		Payment: api.NewPaymentHandler(reconciler, webhooks, log),
		Health:  api.NewHealthHandler(checks, 2*time.Second),
	}, cfg.Server, config.GetDuration(cfg.Draft.TTL), log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Intake server stopped gracefully")
}
