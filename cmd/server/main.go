package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	audithandler "certo/internal/audit/handler"
	auditservice "certo/internal/audit/service"
	auditstore "certo/internal/audit/store"
	certhandler "certo/internal/certification/handler"
	certservice "certo/internal/certification/service"
	certstore "certo/internal/certification/store"
	contracthandler "certo/internal/contract/handler"
	contractservice "certo/internal/contract/service"
	contractstore "certo/internal/contract/store"
	"certo/internal/jwtoken"
	"certo/internal/platform/config"
	"certo/internal/platform/httpserver"
	"certo/internal/platform/logger"
	"certo/internal/platform/metrics"
	"certo/internal/platform/redis"
	"certo/internal/template"
	"certo/internal/tenant"
	tenantservice "certo/internal/tenant/service"
	tenantseed "certo/internal/tenant/store"
	apikeystore "certo/internal/tenant/store/apikey"
	tenantstore "certo/internal/tenant/store/tenant"
	httptransport "certo/internal/transport/http"
	"certo/internal/workers/surveillancesweep"
	"certo/migrations"
	"certo/pkg/platform/auditlog"
	"certo/pkg/platform/auditlog/kafka"
	trailmemory "certo/pkg/platform/auditlog/store/memory"
	trailpostgres "certo/pkg/platform/auditlog/store/postgres"
)

func main() {
	if err := run(); err != nil {
		logger.New().Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and supervises the HTTP server plus background
// workers. Everything optional (postgres, redis, kafka, the renderer) degrades
// to an in-process equivalent so a bare `go run ./cmd/server` works.
func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence. An empty postgres URL means in-memory stores, which is
	// the local development and test mode.
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := migrations.Up(db); err != nil {
			return err
		}
		log.Info("postgres connected, migrations applied")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	// Compliance trail: always persisted, optionally fanned out to kafka.
	var trailStore auditlog.Store
	if db != nil {
		trailStore = trailpostgres.New(db)
	} else {
		trailStore = trailmemory.NewInMemoryStore()
	}
	var trail auditlog.Publisher = auditlog.NewStorePublisher(trailStore, log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := kafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		trail = auditlog.Fanout{trail, kafkaPublisher}
		log.Info("kafka trail publisher enabled", "topic", cfg.Kafka.Topic)
	}

	// Stores.
	var (
		audits      auditservice.AuditStore
		certs       certservice.CertificationStore
		sweepSource surveillancesweep.CertificationSource
		contracts   contractservice.ContractStore
	)
	tenantSvcOpts := []tenantservice.Option{
		tenantservice.WithLogger(log),
		tenantservice.WithTrailPublisher(trail),
		tenantservice.WithMetrics(m),
	}
	var tenantSvc *tenant.Service
	if db != nil {
		audits = auditstore.NewPostgres(db)
		pg := certstore.NewPostgres(db)
		certs, sweepSource = pg, pg
		contracts = contractstore.NewPostgres(db)
		tenantSvc = tenant.NewService(tenantstore.NewPostgres(db), apikeystore.NewPostgres(db), tenantSvcOpts...)
	} else {
		audits = auditstore.NewInMemory()
		mem := certstore.NewInMemory()
		certs, sweepSource = mem, mem
		contracts = contractstore.NewInMemory()
		tenants := tenantstore.NewInMemory()
		keys := apikeystore.NewInMemory()
		tenantSvc = tenant.NewService(tenants, keys, tenantSvcOpts...)

		bootstrapTenant, bootstrapKey, secret := tenantseed.SeedBootstrapTenant(tenants, keys)
		log.Info("seeded bootstrap tenant for local development",
			"tenant_id", bootstrapTenant.ID.String(),
			"key_id", bootstrapKey.KeyID,
			"secret", secret)
	}

	// Services.
	auditSvc := auditservice.New(audits,
		auditservice.WithLogger(log),
		auditservice.WithTrailPublisher(trail),
		auditservice.WithMetrics(m),
	)

	certOpts := []certservice.Option{
		certservice.WithLogger(log),
		certservice.WithTrailPublisher(trail),
		certservice.WithMetrics(m),
	}
	if db != nil {
		certOpts = append(certOpts, certservice.WithTxRunner(newPostgresTx(db)))
	}
	if redisClient != nil {
		certOpts = append(certOpts, certservice.WithReconcileLock(redis.NewLock(redisClient)))
	}
	if cfg.TemplateRendererURL != "" {
		certOpts = append(certOpts, certservice.WithRenderer(template.New(cfg.TemplateRendererURL,
			template.WithLogger(log), template.WithMetrics(m))))
		log.Info("template renderer gateway enabled", "url", cfg.TemplateRendererURL)
	}
	certSvc := certservice.New(certs, audits, certOpts...)

	contractSvc := contractservice.New(contracts, contractservice.WithLogger(log))

	tokens := jwtoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := httptransport.New(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		TokenValidator: tokens,
		AdminToken:     cfg.AdminToken,

		Audits:         audithandler.New(auditSvc, log),
		Certifications: certhandler.New(certSvc, log),
		Contracts:      contracthandler.New(contractSvc, log),
		Tenants:        tenant.NewHandler(tenantSvc, log),

		HealthCheck: func() error {
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if db != nil {
				if err := db.PingContext(hctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(hctx)
			}
			return nil
		},
	})

	sweepOpts := []surveillancesweep.Option{
		surveillancesweep.WithLogger(log),
		surveillancesweep.WithTrailPublisher(trail),
		surveillancesweep.WithMetrics(m),
	}
	if redisClient != nil {
		sweepOpts = append(sweepOpts, surveillancesweep.WithLock(redis.NewLock(redisClient)))
	}
	sweeper := surveillancesweep.New(sweepSource, cfg.SweepInterval, sweepOpts...)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting certo", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
