package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/aviation-connect/adapters/internal/audit"
	"github.com/aviation-connect/adapters/internal/httpclient"
	"github.com/aviation-connect/adapters/internal/jobs"
	"github.com/aviation-connect/adapters/internal/publisher"
	"github.com/aviation-connect/adapters/internal/rate"
	"github.com/aviation-connect/adapters/internal/store"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/api"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/handler"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/jetnet"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/rabbitmq"
	internalsecrets "github.com/aviation-connect/adapters/jetnet-adapter/internal/secrets"
	"github.com/aviation-connect/adapters/jetnet-adapter/pkg/config"
	"github.com/aviation-connect/adapters/pkg/logger"
	"github.com/aviation-connect/adapters/pkg/redact"
	"github.com/aviation-connect/adapters/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [jetnet-adapter]...")

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}

	// --- Credentials ---
	var (
		creds       jetnet.CredentialSource
		accounts    jetnet.AccountLister
		stopCleaner = make(chan struct{})
	)
	switch cfg.CredentialSource {
	case config.CredentialSourceAWS:
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		credCache := secrets.NewCache[auth.Credentials](cfg.CacheTTL)
		go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

		resolver := internalsecrets.NewAWSResolver(logg.Desugar(), cfg.Env, awsProvider, credCache)
		creds, accounts = resolver, resolver

		discovered, err := resolver.DiscoverAccounts(ctx)
		if err != nil {
			logg.Warnw("failed to discover accounts from AWS Secrets Manager", "error", err)
		} else {
			logg.Infow("discovered JetNet accounts", "count", len(discovered), "accounts", discovered)
		}
	default:
		creds = jetnet.NewStaticCredentials(cfg.JetNetUsername, cfg.JetNetPassword)
		if len(cfg.WarmAccounts) > 0 {
			accounts = jetnet.StaticAccounts(cfg.WarmAccounts)
		}
	}

	// --- Session store (memory or Redis) and audit pool ---
	pgCfg := store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}
	var (
		st         *store.HybridStore
		tokenStore auth.TokenStore = auth.NewMemoryStore()
		pgPool     *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", redact.MaskDSN(cfg.DatabaseURL))
	}
	if cfg.TokenStore == config.TokenStoreRedis {
		var err error
		st, err = store.NewHybrid(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		}, cfg.DatabaseURL, pgCfg, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		tokenStore = auth.NewStoreAdapter(st)
		pgPool = st.PG
	} else {
		var err error
		pgPool, err = store.NewPGPool(ctx, cfg.DatabaseURL, pgCfg)
		if err != nil {
			logg.Fatalw("failed to init postgres pool", "error", err)
		}
	}

	var recorder jetnet.CallRecorder
	if pgPool != nil {
		callLog := audit.NewCallLogWriter(pgPool, logger.L(), cfg.ServiceName)
		if err := callLog.EnsureSchema(ctx); err != nil {
			logg.Fatalw("failed to ensure audit schema", "error", err)
		}
		recorder = callLog
	}

	// --- Rate limiter + HTTP executor ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.JetNetRPS,
		Burst:             cfg.JetNetBurst,
	})
	exec := httpclient.New(
		logg.Desugar(),
		rateMgr,
		&http.Client{Timeout: cfg.JetNetTimeout},
		0, // the gateway owns the single 401 retry
		cfg.Venue,
		nil,
		httpclient.WithRequestLabel(jetnet.RequestLabel),
	)

	// --- JetNet session manager + gateway ---
	var authOpts []auth.Option
	if cfg.SessionDedupeLogins {
		authOpts = append(authOpts, auth.WithLoginDedupe())
	}
	sessions := auth.NewManager(logg.Desugar(), cfg.JetNetBaseURL, tokenStore, authOpts...)
	client := jetnet.NewClient(logg.Desugar(), cfg.JetNetBaseURL, creds, sessions, exec,
		jetnet.WithRequestTimeout(cfg.JetNetTimeout))

	catalog, err := jetnet.LoadCatalog()
	if err != nil {
		logg.Fatalw("failed to load operation catalog", "error", err)
	}

	svc := jetnet.NewService(logg.Desugar(), jetnet.ServiceConfig{
		Catalog:        catalog,
		Gateway:        client,
		Credentials:    creds,
		Sessions:       sessions,
		Recorder:       recorder,
		Accounts:       accounts,
		DefaultAccount: cfg.DefaultAccount,
	})

	// --- Queue driver ---
	var (
		nc             *nats.Conn
		warmPublisher  jobs.EventPublisher
		rabbitConsumer *rabbitmq.Consumer
		commandTimeout = 3 * cfg.JetNetTimeout
	)
	dispatcher := handler.NewDispatcher(logg.Desugar(), svc, cfg.BatchConcurrency)

	switch cfg.QueueDriver {
	case config.QueueDriverNATS:
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err := publisher.New(nc, logg.Desugar(), cfg.OutboundSubject, cfg.ServiceName, metrics.PublishHook)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		warmPublisher = pub

		h := handler.NewHandler(ctx, logg.Desugar(), nc, dispatcher, pub, handler.Config{
			InboundSubject:  cfg.InboundSubject,
			OutboundSubject: cfg.OutboundSubject,
			QueueGroup:      cfg.QueueGroup,
			CommandTimeout:  commandTimeout,
		})
		if err := h.Start(); err != nil {
			logg.Fatalw("failed to start NATS handler", "error", err)
		}
	case config.QueueDriverRabbitMQ:
		conn, ch, err := rabbitmq.Dial(cfg.RabbitMQURL)
		if err != nil {
			logg.Fatalw("failed to connect to RabbitMQ", "error", err)
		}
		resultPub := rabbitmq.NewPublisher(ch, cfg.ResultQueue, logg.Desugar())
		rabbitConsumer = rabbitmq.NewConsumer(conn, ch, cfg.RequestQueue, cfg.ResultQueue, commandTimeout,
			dispatcher, resultPub, logg.Desugar())
		if err := rabbitConsumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start RabbitMQ consumer", "error", err)
		}
	}

	// --- Session warmer ---
	warmer := jobs.NewTokenWarmer(logg.Desugar(), svc, svc, warmPublisher, cfg.WarmSubject, cfg.WarmInterval)
	go warmer.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	jetnetHandler := api.NewJetNetHandler(logg.Desugar(), svc, cfg.BatchConcurrency)
	var health store.Store
	if st != nil {
		health = st
	}
	api.RegisterRoutes(app, nc, health, jetnetHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[jetnet-adapter] running",
		"env", cfg.Env,
		"credential_source", cfg.CredentialSource,
		"token_store", cfg.TokenStore,
		"queue_driver", cfg.QueueDriver,
		"operations", catalog.Len())

	<-ctx.Done()
	logg.Info("shutting down [jetnet-adapter]...")

	close(stopCleaner)
	warmer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if rabbitConsumer != nil {
		if err := rabbitConsumer.Close(); err != nil {
			logg.Warnw("rabbitmq.close_failed", "error", err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logg.Warnw("store.close_failed", "error", err)
		}
	} else if pgPool != nil {
		pgPool.Close()
	}
}
