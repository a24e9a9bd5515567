package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"verigate/internal/platform/config"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	"verigate/internal/platform/metrics"
	httptransport "verigate/internal/transport/http"
	"verigate/internal/verification/callback"
	"verigate/internal/verification/handler"
	"verigate/internal/verification/messaging"
	vmetrics "verigate/internal/verification/metrics"
	"verigate/internal/verification/provider"
	"verigate/internal/verification/reconciler"
	"verigate/internal/verification/service"
	"verigate/pkg/platform/middleware/ratelimit"
)

const limiterSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("verigate stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	vm := vmetrics.New(reg)

	infra, err := buildInfra(ctx, cfg, vm, reg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	client, err := provider.New(provider.Config{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		WorkflowID: cfg.Provider.WorkflowID,
		Timeout:    cfg.Provider.Timeout,
	}, provider.WithMetrics(vm), provider.WithLogger(log))
	if err != nil {
		return fmt.Errorf("provider client: %w", err)
	}
	sessions := service.New(client,
		service.WithLogger(log),
		service.WithDecisionTTL(cfg.Reconciler.DecisionTTL),
	)

	bus := messaging.NewBus(messaging.WithMetrics(vm))
	rec := reconciler.New(sessions, infra.cache,
		reconciler.WithSignalStore(infra.signals),
		reconciler.WithMessageBus(bus),
		reconciler.WithAudit(infra.audit),
		reconciler.WithMetrics(vm),
		reconciler.WithLogger(log),
		reconciler.WithStorePollInterval(cfg.Reconciler.StorePollInterval),
		reconciler.WithCloseDelay(cfg.Reconciler.CloseDelay),
		reconciler.WithMaxDuration(cfg.Reconciler.MaxDuration),
	)

	signer := callback.NewSigner(cfg.Callback.SigningKey, cfg.Server.PublicOrigin, cfg.Callback.TokenTTL)
	origin := cfg.Server.PublicOrigin
	manager := reconciler.NewManager(rec,
		reconciler.WithCallbackURL(func(attemptID string) (string, error) {
			return signer.URL(origin, attemptID)
		}),
		reconciler.WithManagerLogger(log),
	)

	limiter := ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	api := handler.New(sessions, manager,
		handler.WithSignalStore(infra.signals),
		handler.WithMessageBus(bus),
		handler.WithSigner(signer),
		handler.WithAudit(infra.audit),
		handler.WithRelayLimiter(limiter),
		handler.WithPublicOrigin(origin),
		handler.WithLogger(log),
	)
	admin := handler.NewAdmin(infra.cache, infra.audit, cfg.Server.AdminToken, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Health:   infra.health,
		Routes:   []httptransport.Registrar{api, admin},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting verigate", "addr", cfg.Server.Addr, "cache", cfg.Reconciler.CacheBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					log.Debug("swept idle rate limiters", "count", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			manager.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}
