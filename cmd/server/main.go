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

	"golang.org/x/sync/errgroup"

	claimshandler "claimverifier/internal/claims/handler"
	"claimverifier/internal/claims/ledger"
	claimsmetrics "claimverifier/internal/claims/metrics"
	"claimverifier/internal/claims/recorder"
	"claimverifier/internal/claims/report"
	claimsstore "claimverifier/internal/claims/store"
	"claimverifier/internal/claims/validation"
	"claimverifier/internal/claims/verifier"
	"claimverifier/internal/platform/config"
	"claimverifier/internal/platform/httpserver"
	"claimverifier/internal/platform/kafka"
	"claimverifier/internal/platform/logger"
	"claimverifier/internal/platform/metrics"
	"claimverifier/internal/platform/outbox"
	"claimverifier/internal/platform/postgres"
	"claimverifier/internal/platform/redis"
	httptransport "claimverifier/internal/transport/http"
)

type claimsStorage interface {
	ledger.Store
	recorder.ClaimStore
}

type unitOfWork interface {
	recorder.UnitOfWork
	outbox.UnitOfWork
}

// storage bundles the persistence implementations selected by configuration.
type storage struct {
	claims  claimsStorage
	tx      unitOfWork
	// relayTx scopes the outbox relay; in memory it must not share lock shards with claims.
	relayTx outbox.UnitOfWork
	outbox  outbox.Store
	db      *sql.DB
}

// main wires dependencies, starts the HTTP server and the outbox relay, and shuts both down
// on SIGINT or SIGTERM. Business logic lives in the internal/claims packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("claimverifier stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	platformMetrics := metrics.New()
	claimMetrics := claimsmetrics.New()

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	l, err := ledger.New(st.claims, ledger.WithLogger(log), ledger.WithMetrics(claimMetrics))
	if err != nil {
		return err
	}

	recorderOpts := []recorder.Option{
		recorder.WithLogger(log),
		recorder.WithMetrics(claimMetrics),
		recorder.WithLocation(cfg.Claims.Location),
		recorder.WithSinks(
			report.NewCSVWriter(cfg.Reports.CSVPath),
			report.NewPDFRenderer(cfg.Reports.PDFDir),
		),
	}
	checks := map[string]httptransport.HealthCheck{}
	if st.db != nil {
		checks["postgres"] = st.db.PingContext
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cached := claimsstore.NewCachedLookup(st.claims, redisClient.Client, cfg.Redis.LookupTTL, log, claimMetrics)
		recorderOpts = append(recorderOpts, recorder.WithLookup(cached, cached))
		checks["redis"] = redisClient.Health
		log.Info("claims lookup cache enabled", "ttl", cfg.Redis.LookupTTL)
	}

	rec, err := recorder.New(recorder.Deps{
		Validator: validation.New(validation.WithLocation(cfg.Claims.Location)),
		Ledger:    l,
		Verifier:  verifier.New(verifier.WithLocation(cfg.Claims.Location)),
		Claims:    st.claims,
		Tx:        st.tx,
		Outbox:    st.outbox,
	}, recorderOpts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Metrics:  platformMetrics,
		Checks:   checks,
		Handlers: []httptransport.RouteRegistrar{claimshandler.New(rec, l, log)},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		worker := outbox.NewWorker(st.outbox, producer, st.relayTx,
			outbox.WithPollInterval(cfg.Kafka.PollInterval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(platformMetrics),
		)
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("outbox relay started", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		log.Info("no kafka brokers configured; claim events stay in the outbox")
	}

	g.Go(func() error {
		log.Info("starting claimverifier", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStorage selects Postgres when DATABASE_URL is set and the in-memory stores otherwise.
func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return &storage{
			claims:  claimsstore.NewInMemory(),
			tx:      claimsstore.NewShardedTx(cfg.Claims.TxTimeout),
			relayTx: claimsstore.NewShardedTx(cfg.Claims.TxTimeout),
			outbox:  outbox.NewInMemory(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.RunMigrations {
		if err := postgres.Migrate(db, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	tx := postgres.NewTxRunner(db,
		postgres.WithTxTimeout(cfg.Claims.TxTimeout),
		postgres.WithTxLogger(log),
	)
	return &storage{
		claims:  claimsstore.NewPostgres(db),
		tx:      tx,
		relayTx: tx,
		outbox:  outbox.NewPostgres(db),
		db:      db,
	}, nil
}
