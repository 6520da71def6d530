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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rollbook/internal/event"
	jwttoken "rollbook/internal/jwt_token"
	"rollbook/internal/ledger/handler"
	ledgermetrics "rollbook/internal/ledger/metrics"
	"rollbook/internal/ledger/service"
	"rollbook/internal/ledger/store"
	"rollbook/internal/platform/config"
	"rollbook/internal/platform/httpserver"
	"rollbook/internal/platform/logger"
	platformmetrics "rollbook/internal/platform/metrics"
	"rollbook/internal/platform/postgres"
	"rollbook/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal/ledger.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(slog.LevelInfo)

	ledgerStore, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	outbox := make(chan event.Event, cfg.EventBuffer)
	publisher := event.NewPublisher(event.NewMemoryStore(),
		event.WithLogger(log),
		event.WithOutbox(outbox),
	)

	sink, sinkCleanup, err := buildSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sinkCleanup()

	svc := service.New(ledgerStore,
		service.WithLogger(log),
		service.WithEventPublisher(publisher),
		service.WithMetrics(ledgermetrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTIssuer)

	r := chi.NewRouter()
	handler.New(svc, log, platformmetrics.New(), jwttoken.NewJWTServiceAdapter(jwtService)).Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rollbook", "addr", cfg.Addr, "store", cfg.Store, "event_sink", cfg.EventSink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := event.NewWorker(sink, outbox, log).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildStore(ctx context.Context, cfg config.Server) (service.LedgerStore, func(), error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "postgres":
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger store %q", cfg.Store)
	}
}

func buildSink(ctx context.Context, cfg config.Server) (event.Sink, func(), error) {
	switch cfg.EventSink {
	case "none", "":
		return event.NopSink{}, func() {}, nil
	case "kafka":
		sink, err := event.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "redis":
		client, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, fmt.Errorf("redis event sink requires REDIS_URL")
		}
		return event.NewRedisSink(client.Client, cfg.RedisStream), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown event sink %q", cfg.EventSink)
	}
}
