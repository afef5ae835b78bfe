package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/clinical"
	"sacs-telemedicina-hub/internal/config"
	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/logger"
	"sacs-telemedicina-hub/internal/metrics"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/notify"
	"sacs-telemedicina-hub/internal/routes"
	"sacs-telemedicina-hub/internal/seed"
	"sacs-telemedicina-hub/internal/storage"
	"sacs-telemedicina-hub/internal/telemedicine"
)

const serviceName = "sacs"

// app holds the wired services shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector

	store storage.Store

	repo         *appointments.Repository
	engine       *appointments.Engine
	views        *appointments.Views
	dispatcher   *appointments.Dispatcher
	directory    *identity.Directory
	profiles     *identity.Profiles
	clinical     *clinical.Service
	telemedicine *telemedicine.Service

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log, metrics: metrics.NewCollector(serviceName)}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.repo = appointments.NewRepository(a.store)
	a.views = appointments.NewViews(a.repo)
	a.clinical = clinical.NewService(a.store, log.Named("clinical"))
	a.telemedicine = telemedicine.NewService(a.store, log.Named("telemedicine"))

	dirOpts := []identity.DirectoryOption{identity.WithDirectoryLogger(log.Named("directory"))}
	var remote identity.ProfileSource
	if cfg.Profile.URL != "" {
		client := identity.NewProfileClient(identity.ProfileClientConfig{
			BaseURL: cfg.Profile.URL,
			APIKey:  cfg.Profile.APIKey,
			Timeout: cfg.Profile.Timeout,
		}, log.Named("profiles"))
		remote = client
		dirOpts = append(dirOpts, identity.WithRegistrar(client))
	}
	a.directory = identity.NewDirectory(a.store, dirOpts...)
	a.profiles = identity.NewProfiles(remote, a.directory, log.Named("profiles"))

	hooks := []appointments.Hook{
		notify.NewLogHook(log.Named("events")),
		notify.NewMetricsHook(a.metrics),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, writer.Close)
		hooks = append(hooks, notify.NewKafkaHook(writer))
		log.Info("publishing appointment events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	a.dispatcher = appointments.NewDispatcher(log.Named("dispatcher"), cfg.HookBufferSize, hooks...)
	a.metrics.RegisterDroppedEvents(serviceName, func() float64 {
		return float64(a.dispatcher.Dropped())
	})

	a.engine = appointments.NewEngine(a.repo,
		appointments.WithDispatcher(a.dispatcher),
		appointments.WithSessionIssuer(a.telemedicine),
		appointments.WithNoteChecker(a.clinical),
		appointments.WithLogger(log.Named("appointments")),
	)
	return a, nil
}

// openStore connects the configured backend and wraps it with the per-call timeout.
func (a *app) openStore(ctx context.Context) error {
	var base storage.Store
	switch a.cfg.Store.Backend {
	case "mysql", "postgres":
		db, err := storage.OpenGorm(a.cfg.Store.Backend, a.cfg.Database.DSN)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		if err := storage.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrating kv table: %w", err)
		}
		base = storage.NewGormStore(db)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", a.cfg.Redis.Addr, err)
		}
		base = storage.NewRedisStore(client, a.cfg.Redis.Prefix)
	default:
		base = storage.NewMemoryStore()
	}
	a.store = storage.WithTimeout(base, a.cfg.Store.Timeout)
	a.logger.Info("store ready", zap.String("backend", a.cfg.Store.Backend))
	return nil
}

func (a *app) Seed(ctx context.Context) (bool, error) {
	return seed.Run(ctx, a.directory, a.repo, time.Now().UTC(), a.logger.Named("seed"))
}

// Migrate rewrites every collection so stored documents carry the current schema version.
func (a *app) Migrate(ctx context.Context) error {
	collections := []storage.Rewriter{
		a.repo.Collection(),
		a.directory.Users(),
		a.directory.Patients(),
		a.telemedicine.Collection(),
	}
	collections = append(collections, a.clinical.Collections()...)
	for _, c := range collections {
		n, err := c.Rewrite(ctx)
		if err != nil {
			return fmt.Errorf("rewriting %s: %w", c.Key(), err)
		}
		a.logger.Info("collection rewritten", zap.String("key", c.Key()), zap.Int("items", n))
	}
	return nil
}

func (a *app) Serve(ctx context.Context) error {
	if a.cfg.SeedOnStart {
		if _, err := a.Seed(ctx); err != nil {
			return err
		}
	}

	if !a.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(a.logger.Named("http"), a.metrics))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{a.cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Deps{
		Cfg:          a.cfg,
		Engine:       a.engine,
		Views:        a.views,
		Directory:    a.directory,
		Profiles:     a.profiles,
		Clinical:     a.clinical,
		Telemedicine: a.telemedicine,
		Metrics:      a.metrics,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close drains pending hook deliveries before releasing connections.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
