package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/transpool/internal/cache"
	"github.com/example/transpool/internal/config"
	"github.com/example/transpool/internal/dispatch"
	httpapi "github.com/example/transpool/internal/http"
	"github.com/example/transpool/internal/ingest"
	"github.com/example/transpool/internal/logging"
	"github.com/example/transpool/internal/models"
	"github.com/example/transpool/internal/observability"
	"github.com/example/transpool/internal/payments"
	"github.com/example/transpool/internal/scenario"
	"github.com/example/transpool/internal/service"
	"github.com/example/transpool/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := scenario.Load(cfg.ScenarioFile)
	if err != nil {
		return err
	}

	opts := service.Options{Logger: logger, DefaultMaxResults: cfg.MatcherMaxResults}
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCandidateTTL)
		if err := rc.Ping(ctx); err != nil {
			return err
		}
		closers = append(closers, rc.Close)
		opts.Candidates = rc
		logger.Info("candidate cache on redis", "addr", cfg.RedisAddr)
	}

	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		closers = append(closers, ps.Close)
		// optional migration
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}
		opts.Store = ps
	}

	svc, err := service.NewFromScenario(ctx, sc, opts)
	if err != nil {
		return err
	}
	logger.Info("scenario loaded", "file", cfg.ScenarioFile,
		"stops", len(sc.Map.Stops), "offers", len(sc.Offers), "requests", len(sc.Requests))

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, kp.Close)
		svc.AddSink("kafka", service.MatchSinkFunc(kp.PublishMatch))
	}

	wsreg := dispatch.NewWSRegistry(logger)
	wsreg.OnChange = func(n int) { observability.DriversConnected.Set(float64(n)) }
	svc.AddSink("ws", service.MatchSinkFunc(func(_ context.Context, m models.MatchDTO) error {
		return wsreg.NotifyMatch(m)
	}))

	if cfg.StripeAPIKey != "" {
		settler := payments.NewSettler(payments.NewStripeClient(cfg.StripeAPIKey), cfg.StripeCurrency)
		svc.AddSink("stripe", service.MatchSinkFunc(func(ctx context.Context, m models.MatchDTO) error {
			id, err := settler.Settle(ctx, m)
			if err == nil && id != "" {
				logger.Info("match settled", "match_id", m.ID, "payment_intent", id)
			}
			return err
		}))
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(svc, wsreg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("transpool listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
