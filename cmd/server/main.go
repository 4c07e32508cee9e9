package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"veritas/internal/audit/handler"
	"veritas/internal/audit/metrics"
	"veritas/internal/audit/service"
	"veritas/internal/audit/siem"
	"veritas/internal/audit/store/archive"
	"veritas/internal/audit/store/primary"
	"veritas/internal/audit/verifier"
	"veritas/internal/platform/config"
	"veritas/internal/platform/httpserver"
	"veritas/internal/platform/logger"
	platformredis "veritas/internal/platform/redis"
)

// main wires configuration into the audit pipeline and keeps the server
// lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.FromEnv()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, db, err := buildPrimaryStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	archiveStore, err := buildArchiveStore(cfg, log)
	if err != nil {
		return err
	}

	sink, redisClient, err := buildSIEMSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	if sink != nil {
		defer sink.Close()
	}

	fanout := service.NewFanout(archiveStore, sink,
		service.WithFanoutLogger(log),
		service.WithFanoutMetrics(m),
		service.WithFanoutBuffer(cfg.Fanout.BufferSize),
		service.WithFanoutDeliverTimeout(cfg.Fanout.DeliverTimeout),
	)
	defer fanout.Close()

	svc, err := service.New(store,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithFanout(fanout),
	)
	if err != nil {
		return err
	}

	v, err := verifier.New(store,
		verifier.WithLogger(log),
		verifier.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(handler.RequestMetadata)
	handler.New(svc, v, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redisClient))

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting audit trail server", "addr", cfg.Server.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred closes drain the fan-out buffer before the process exits, so
	// a clean shutdown loses no mirrors.
	log.Info("server stopped")
	return nil
}

func buildPrimaryStore(ctx context.Context, cfg config.Config, log *slog.Logger) (primary.Store, *sql.DB, error) {
	if cfg.Postgres.DSN == "" {
		log.Warn("no postgres DSN configured, using in-memory primary store")
		return primary.NewInMemoryStore(), nil, nil
	}

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	pg := primary.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("primary store ready", "backend", "postgres")
	return pg, db, nil
}

func buildArchiveStore(cfg config.Config, log *slog.Logger) (archive.Store, error) {
	if cfg.Archive.Bucket == "" {
		log.Warn("no archive bucket configured, using in-memory archive")
		return archive.NewInMemoryStore(cfg.Archive.Retention), nil
	}

	s3Store, err := archive.NewS3(archive.S3Config{
		Bucket:          cfg.Archive.Bucket,
		Region:          cfg.Archive.Region,
		Endpoint:        cfg.Archive.Endpoint,
		AccessKeyID:     cfg.Archive.AccessKey,
		SecretAccessKey: cfg.Archive.SecretKey,
		Retention:       cfg.Archive.Retention,
	})
	if err != nil {
		return nil, err
	}
	log.Info("archive store ready", "backend", "s3", "bucket", cfg.Archive.Bucket)
	return s3Store, nil
}

func buildSIEMSink(ctx context.Context, cfg config.Config, log *slog.Logger) (siem.Sink, *platformredis.Client, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("no kafka brokers configured, SIEM delivery disabled")
		return nil, nil, nil
	}

	kafkaSink, err := siem.NewKafka(siem.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		kafkaSink.Close()
		return nil, nil, err
	}
	if redisClient == nil {
		log.Info("siem sink ready", "topic", cfg.Kafka.Topic, "dedup", false)
		return kafkaSink, nil, nil
	}

	log.Info("siem sink ready", "topic", cfg.Kafka.Topic, "dedup", true)
	return siem.NewDedup(kafkaSink, redisClient.Client, cfg.Redis.DedupTTL, log), redisClient, nil
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "primary store unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
