// Server entrypoint. Wires config, stores, services and transport, then
// serves until interrupted. Business logic lives in the internal
// service packages; this file only composes them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "lineage/internal/auth/handler"
	authmetrics "lineage/internal/auth/metrics"
	authservice "lineage/internal/auth/service"
	credentialstore "lineage/internal/auth/store/credential"
	"lineage/internal/auth/token"
	hierarchyhandler "lineage/internal/hierarchy/handler"
	hierarchymetrics "lineage/internal/hierarchy/metrics"
	hierarchyservice "lineage/internal/hierarchy/service"
	agentstore "lineage/internal/hierarchy/store/agent"
	registrystore "lineage/internal/hierarchy/store/registry"
	"lineage/internal/platform/config"
	"lineage/internal/platform/httpserver"
	"lineage/internal/platform/kafka"
	kafkaconsumer "lineage/internal/platform/kafka/consumer"
	"lineage/internal/platform/logger"
	"lineage/internal/platform/metrics"
	platformredis "lineage/internal/platform/redis"
	treasuryhandler "lineage/internal/treasury/handler"
	treasurymetrics "lineage/internal/treasury/metrics"
	treasuryservice "lineage/internal/treasury/service"
	balancestore "lineage/internal/treasury/store/balance"
	"lineage/pkg/platform/eventlog"
	eventconsumer "lineage/pkg/platform/eventlog/consumer"
	"lineage/pkg/platform/eventlog/publisher"
	eventmemory "lineage/pkg/platform/eventlog/store/memory"
	eventpostgres "lineage/pkg/platform/eventlog/store/postgres"
	"lineage/pkg/platform/eventlog/worker"
	"lineage/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.Env)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// stores bundles the persistence layer picked by LINEAGE_STORE. outbox
// and feed are nil in memory mode; the Kafka pipeline requires both.
type stores struct {
	agents      agentstore.Store
	registries  hierarchyservice.RegistryStore
	balances    treasuryservice.BalanceStore
	credentials authservice.CredentialStore
	events      eventlog.Store
	outbox      eventlog.OutboxStore
	feed        eventconsumer.FeedStore
	runner      tx.Runner
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, db, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	hierMetrics := hierarchymetrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		st.agents = agentstore.NewCache(st.agents, redisClient.Client, cfg.Redis.CacheTTL,
			agentstore.WithCacheLogger(log),
			agentstore.WithCacheMeter(hierMetrics),
		)
		log.Info("agent read cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	events := publisher.NewPublisher(st.events, publisher.WithLogger(log))
	defer events.Close()

	tokens := token.NewService(cfg.JWTSigningKey, "lineage", cfg.TokenTTL)
	authSvc := authservice.New(st.credentials, events, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(authmetrics.New()),
	)
	treasurySvc := treasuryservice.New(st.balances, events, st.runner,
		treasuryservice.WithLogger(log),
		treasuryservice.WithMetrics(treasurymetrics.New()),
	)
	hierarchySvc := hierarchyservice.New(st.agents, st.registries, treasurySvc, events, st.runner,
		hierarchyservice.WithLogger(log),
		hierarchyservice.WithMetrics(hierMetrics),
	)

	httpMetrics := metrics.New()

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	authhandler.New(authSvc, log, httpMetrics).Register(router)
	hierarchyhandler.New(hierarchySvc, events, tokens, log, httpMetrics).Register(router)
	treasuryhandler.New(treasurySvc, tokens, log, httpMetrics).Register(router)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled() {
		if st.outbox == nil {
			log.Warn("kafka configured without postgres store, event stream disabled")
		} else {
			if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
				return err
			}

			producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return err
			}
			defer producer.Close()
			outboxWorker := worker.NewWorker(st.outbox, producer, log, cfg.Kafka.OutboxInterval)
			g.Go(func() error { return outboxWorker.Run(gctx) })

			feedRouter := eventconsumer.NewRouter(log, nil)
			feedRouter.Register(cfg.Kafka.Topic, eventconsumer.NewFeedHandler(st.feed, log))
			feed, err := kafkaconsumer.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
				[]string{cfg.Kafka.Topic}, feedRouter, log)
			if err != nil {
				return err
			}
			defer feed.Close()
			g.Go(func() error { return feed.Run(gctx) })

			log.Info("event stream enabled",
				"topic", cfg.Kafka.Topic,
				"group", cfg.Kafka.ConsumerGroup,
			)
		}
	}

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error { return httpserver.Run(gctx, srv, log) })

	log.Info("lineage listening",
		"addr", cfg.Addr,
		"store", cfg.StoreDriver,
		"env", cfg.Env,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildStores selects the persistence backend. In postgres mode every
// store applies its schema before the server accepts traffic.
func buildStores(ctx context.Context, cfg config.Config) (*stores, *sql.DB, error) {
	switch cfg.StoreDriver {
	case "memory":
		return &stores{
			agents:      agentstore.NewInMemory(),
			registries:  registrystore.NewInMemory(),
			balances:    balancestore.NewInMemory(),
			credentials: credentialstore.NewInMemory(),
			events:      eventmemory.NewInMemoryStore(),
			runner:      tx.NewMemoryRunner(),
		}, nil, nil

	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, nil, fmt.Errorf("LINEAGE_POSTGRES_URL is required in postgres mode")
		}
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}

		agents := agentstore.NewPostgres(db)
		registries := registrystore.NewPostgres(db)
		balances := balancestore.NewPostgres(db)
		credentials := credentialstore.NewPostgres(db)
		events := eventpostgres.New(db)
		for _, ensure := range []func(context.Context) error{
			agents.EnsureSchema,
			registries.EnsureSchema,
			balances.EnsureSchema,
			credentials.EnsureSchema,
			events.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}

		return &stores{
			agents:      agents,
			registries:  registries,
			balances:    balances,
			credentials: credentials,
			events:      events,
			outbox:      events,
			feed:        events,
			runner:      tx.NewSQLRunner(db),
		}, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
