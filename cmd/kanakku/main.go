package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"kanakku/internal/amqp"
	"kanakku/internal/backend"
	"kanakku/internal/cache"
	"kanakku/internal/cli"
	"kanakku/internal/family"
	apphttp "kanakku/internal/http"
	"kanakku/internal/log"
	"kanakku/internal/services"
	"kanakku/internal/watch"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// origin tags the ledger events of this instance so the relay skips them.
	origin := uuid.NewString()
	hub := watch.NewHub()

	catalog := services.NewCategoryCatalog(res.Store, cfg.CategoryCacheTTL)
	caches := cache.NewManager()
	if cleaner := catalog.Cleaner(); cleaner != nil {
		caches.Register(cleaner)
		caches.StartCleanup(time.Minute)
	}

	families := family.NewService(res.Store)
	ledgerService := services.NewLedgerService(res.Store, hub, res.Publisher(), origin)
	planning := services.NewPlanningService(res.Store, hub, catalog, res.Publisher(), origin)
	reports := services.NewReportService(res.Store, hub, cfg.Location())

	// Other instances' writes reach local watchers through a private queue
	// bound to the ledger exchange.
	relayCtx, stopRelay := context.WithCancel(ctx)
	var relay *amqp.Client
	if res.AMQP != nil {
		relayConfig := backendConfig.WithQueue("")
		relay, err = amqp.NewClient(relayConfig.AMQPURL, relayConfig.AMQPExchange, relayConfig.AMQPQueue)
		if err != nil {
			logger.Warn("Ledger event relay unavailable, watchers only see local writes", log.FieldError, err)
			relay = nil
		} else {
			go func() {
				if err := relay.Consume(relayCtx, services.HubRelay(hub, origin)); err != nil && relayCtx.Err() == nil {
					logger.WithComponent(log.ComponentAMQP).Error("Ledger event relay stopped", log.FieldError, err)
				}
			}()
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Families:           families,
		Ledger:             ledgerService,
		Planning:           planning,
		Reports:            reports,
		Store:              res.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AuthProxySecret:    cfg.AuthProxySecret,
		Location:           cfg.Location(),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(ctx, logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		stopRelay()
		if relay != nil {
			if err := relay.Close(); err != nil {
				logger.Warn("Failed to close relay connection", log.FieldError, err)
			}
		}
		caches.Stop()
		hub.Close()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	logger.Info("Starting kanakku server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", res.AMQP != nil,
		log.FieldOperation, log.OpStartup)
	exitCode := 0
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		exitCode = 1
		cancel()
	}

	cli.WaitForShutdown(shutdownCtx, done)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	logger.Info("Server stopped gracefully")
}
