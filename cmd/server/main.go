package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"familytasks/internal/config"
	"familytasks/internal/database"
	"familytasks/internal/handlers"
	"familytasks/internal/jobs"
	"familytasks/internal/lifecycle"
	"familytasks/internal/logger"
	"familytasks/internal/realtime"
	"familytasks/internal/repository"
	"familytasks/internal/security"
	"familytasks/internal/service"
	"familytasks/migrations"
)

const (
	stepDatabase   = "Database connection"
	stepMigrations = "Running migrations"
	stepServices   = "Initializing services"
	stepListening  = "Server listening"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "familytasks: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lifecycle.WaitForSignal(ctx, cancel, log)

	shutdown := lifecycle.New(cfg.ShutdownTimeout, log)
	defer func() {
		err = errors.Join(err, shutdown.Shutdown(context.Background()))
	}()

	readiness := handlers.NewReadiness(stepDatabase, stepMigrations, stepServices, stepListening)

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	readiness.Complete(stepDatabase)
	log.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	applied, err := db.RunMigrations(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	readiness.Complete(stepMigrations)
	log.Info("Migrations completed", zap.Strings("applied", applied))

	hub, err := newHub(ctx, cfg, log)
	if err != nil {
		return err
	}
	shutdown.Register("realtime", func(context.Context) error { return hub.Close() })

	// Repositories
	profileRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	// Services
	emailService, err := service.NewEmailService(ctx, cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	sessions := service.NewSessionProvider(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, profileRepo, log)
	members := service.NewMembershipService(familyRepo, hub, log)
	invitations := service.NewInvitationService(invitationRepo, profileRepo, emailService, hub, log)
	feed := service.NewTaskFeed(taskRepo, log)
	tasks := service.NewTaskService(taskRepo, assignmentRepo, profileRepo, members, feed, hub, log)
	go feed.Run(ctx, hub)

	digest, err := jobs.NewDigestJob(profileRepo, tasks, emailService, log, jobs.DigestConfig{
		Schedule: cfg.DigestSchedule,
		Location: cfg.DigestLocation(),
	})
	if err != nil {
		return err
	}
	digest.Start()
	shutdown.Register("digest", digest.Stop)

	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	go limiter.Run(ctx, 10*time.Minute)
	readiness.Complete(stepServices)

	router := handlers.NewRouter(handlers.Handlers{
		Account:     handlers.NewAccountHandler(members, log),
		Groups:      handlers.NewGroupHandler(members, log),
		Invitations: handlers.NewInvitationHandler(invitations, log),
		Tasks:       handlers.NewTaskHandler(tasks, log),
		Readiness:   readiness,
	}, handlers.NewMiddleware(sessions, limiter, log))

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	shutdown.Register("http", func(ctx context.Context) error {
		readiness.MarkDraining()
		return srv.Shutdown(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	readiness.MarkReady()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
}

// newHub shares changes over Redis when REDIS_URL is set and keeps them
// in-process otherwise
func newHub(ctx context.Context, cfg *config.Config, log *zap.Logger) (realtime.Hub, error) {
	if cfg.RedisURL == "" {
		log.Info("Using in-process change notifications")
		return realtime.NewMemoryHub(), nil
	}

	client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	hub := realtime.NewRedisHub(client, cfg.RedisChannel, log)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error("Redis change listener stopped", zap.Error(err))
		}
	}()
	return hub, nil
}
