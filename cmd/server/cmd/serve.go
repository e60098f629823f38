package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepsphere/server/internal/api"
	"github.com/prepsphere/server/internal/api/handlers"
	"github.com/prepsphere/server/internal/api/middleware"
	"github.com/prepsphere/server/internal/audit"
	"github.com/prepsphere/server/internal/auth"
	"github.com/prepsphere/server/internal/config"
	"github.com/prepsphere/server/internal/domain/events"
	"github.com/prepsphere/server/internal/domain/files"
	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/prepsphere/server/internal/domain/recruitment"
	"github.com/prepsphere/server/internal/domain/reports"
	"github.com/prepsphere/server/internal/domain/users"
	"github.com/prepsphere/server/internal/email"
	"github.com/prepsphere/server/internal/jobs"
	"github.com/prepsphere/server/internal/metrics"
	"github.com/prepsphere/server/internal/storage/objects"
	"github.com/prepsphere/server/internal/storage/postgres"
	"github.com/prepsphere/server/internal/telemetry"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host       string
	port       int
	migrate    bool
	migrateSet bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PrepSphere HTTP server",
		Long: `Start the PrepSphere HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending schema and job queue migrations when auto-migrate is on
- Start the background job workers
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start without touching the schema
  server serve --migrate=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.migrateSet = cmd.Flags().Changed("migrate")
			return runServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8001)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations on start (default: DATABASE_AUTO_MIGRATE)")
	return cmd
}

func runServer(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.migrateSet {
		cfg.Database.AutoMigrate = opts.migrate
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting PrepSphere server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate && cfg.Jobs.Enabled {
		if err := postgres.MigrateRiver(ctx, pool, logger); err != nil {
			return err
		}
	}

	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(ctx)
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	app, err := buildApp(cfg, logger, pool)
	if err != nil {
		return err
	}

	if app.jobs != nil {
		if err := app.jobs.Start(ctx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Msg("background job workers started")
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.jobs.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}()
	} else {
		logger.Warn().Msg("job queue disabled, notification emails will not be sent")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return serveUntilSignal(ctx, server, logger)
}

type application struct {
	handler http.Handler
	jobs    *river.Client[pgx.Tx]
}

// buildApp wires storage, domain services, the job queue and the router.
func buildApp(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*application, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, err
	}

	fileOpts := files.Options{
		MaxBytes:   cfg.Storage.MaxUploadBytes,
		PresignTTL: cfg.Storage.PresignTTL,
	}
	local, err := objects.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("local upload dir: %w", err)
	}
	fileOpts.Local = local
	if cfg.Storage.Remote() {
		remote, err := objects.NewS3Store(objects.S3Config{
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		fileOpts.Remote = remote
		logger.Info().Str("bucket", cfg.Storage.Bucket).Msg("remote object storage enabled")
	} else {
		logger.Warn().Str("upload_dir", cfg.Storage.UploadDir).Msg("object storage not configured, remote uploads disabled")
	}

	notificationService := notifications.NewService(repo.Notifications(), logger)
	userService := users.NewService(repo.Users(), notificationService, logger)
	fileService := files.NewService(repo.Files(), userService, notificationService, fileOpts, logger)
	jobService := recruitment.NewService(repo.Jobs(), userService, notificationService, logger)
	eventService := events.NewService(repo.Events(), userService, notificationService, logger)
	reportService := reports.NewService(repo.Reports(), logger)

	app := &application{}
	var jobLister handlers.JobLister
	if cfg.Jobs.Enabled {
		mailer, err := email.NewService(cfg.Email, logger)
		if err != nil {
			return nil, err
		}
		if !mailer.Configured() {
			logger.Warn().Msg("no email transport configured, email jobs will be skipped")
		}
		policy := jobs.NewRetryPolicy(cfg.Jobs.EmailMaxAttempts)
		workers := jobs.NewWorkers(jobs.Deps{
			Users:      userService,
			Mailer:     mailer,
			Files:      fileService,
			Reports:    reportService,
			ReportKeep: cfg.Jobs.ReportArchiveWindow,
			Logger:     logger,
		})
		client, err := jobs.NewClient(pool, workers, policy, logger, jobs.NewPeriodicJobs(cfg.Jobs.ReconcileInterval))
		if err != nil {
			return nil, fmt.Errorf("create river client: %w", err)
		}
		notificationService.SetDispatcher(jobs.NewEmailDispatcher(client, policy))
		app.jobs = client
		jobLister = client
	}

	expected, err := postgres.LatestMigration()
	if err != nil {
		return nil, err
	}

	auditLogger := audit.NewLogger(logger)
	env := cfg.Environment
	app.handler = api.NewRouter(api.Deps{
		Config:  cfg,
		Logger:  logger,
		JWT:     auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer),
		Limiter: middleware.NewRateLimiter(cfg.RateLimit),
		Handlers: api.Handlers{
			Users:         handlers.NewUsersHandler(userService, auditLogger, env),
			Webhook:       handlers.NewWebhookHandler(userService, cfg.Webhook.ClerkSecret, env),
			Files:         handlers.NewFilesHandler(fileService, auditLogger, env),
			Jobs:          handlers.NewJobsHandler(jobService, auditLogger, env),
			Events:        handlers.NewEventsHandler(eventService, auditLogger, env),
			Notifications: handlers.NewNotificationsHandler(notificationService, auditLogger, env),
			TPO:           handlers.NewTPOHandler(userService, fileService, reportService, auditLogger, env),
			Admin:         handlers.NewAdminHandler(fileService, reportService, env),
			Health:        handlers.NewHealthChecker(repo, jobLister, expected, Version, GitCommit),
		},
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})
	return app, nil
}

// serveUntilSignal runs server until SIGINT/SIGTERM or a listener error, then
// drains in-flight requests.
func serveUntilSignal(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}
