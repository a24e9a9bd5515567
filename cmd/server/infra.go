package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"verigate/internal/platform/config"
	"verigate/internal/platform/redis"
	httptransport "verigate/internal/transport/http"
	"verigate/internal/verification/broadcast"
	"verigate/internal/verification/cache"
	vmetrics "verigate/internal/verification/metrics"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/publisher"
	"verigate/pkg/platform/audit/publishers/kafka"
	auditmemory "verigate/pkg/platform/audit/store/memory"
	auditpostgres "verigate/pkg/platform/audit/store/postgres"
)

// infra holds the backing services chosen by configuration.
type infra struct {
	cache   cache.Store
	signals broadcast.Store
	audit   *publisher.Publisher
	health  map[string]httptransport.HealthCheck

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func buildInfra(ctx context.Context, cfg config.Config, vm *vmetrics.Metrics, reg prometheus.Registerer, log *slog.Logger) (_ *infra, err error) {
	in := &infra{health: map[string]httptransport.HealthCheck{}}
	defer func() {
		if err != nil {
			in.Close()
		}
	}()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		in.closers = append(in.closers, func() { _ = rdb.Close() })
		in.health["redis"] = rdb.Health
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping failed: %w", err)
		}
		in.health["postgres"] = db.PingContext
	}

	cacheOpts := []cache.Option{cache.WithTTL(cfg.Reconciler.CacheTTL), cache.WithMetrics(vm)}
	switch cfg.Reconciler.CacheBackend {
	case config.CacheRedis:
		in.cache = cache.NewRedis(rdb.Client, cacheOpts...)
	case config.CachePostgres:
		store := cache.NewPostgres(db, cacheOpts...)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("session cache schema: %w", err)
		}
		in.cache = store
	default:
		in.cache = cache.NewInMemory(cacheOpts...)
	}

	if rdb != nil {
		in.signals = broadcast.NewRedis(rdb.Client)
	} else {
		in.signals = broadcast.NewInMemory()
	}

	auditStore, err := buildAuditStore(ctx, cfg, db, log, &in.closers)
	if err != nil {
		return nil, err
	}
	in.audit = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
		publisher.WithSampler(publisher.NewSampler(cfg.Audit.OperationsSampleRate)),
	)
	in.closers = append(in.closers, in.audit.Close)
	return in, nil
}

// buildAuditStore keeps a listable primary store (Postgres when configured,
// memory otherwise) and tees events to Kafka when brokers are set.
func buildAuditStore(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger, closers *[]func()) (audit.Store, error) {
	var primary audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		store := auditpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		primary = store
	}
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return primary, nil
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Audit.KafkaBrokers...))
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	*closers = append(*closers, client.Close)

	if err := kafka.EnsureTopic(ctx, kadm.NewClient(client), cfg.Audit.Topic, -1, -1); err != nil {
		// Produces are parked in the ring buffer until the broker recovers.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn("could not ensure audit topic", "topic", cfg.Audit.Topic, "error", err)
	}
	return audit.NewTeeStore(primary, kafka.New(client, cfg.Audit.Topic, kafka.WithLogger(log))), nil
}
