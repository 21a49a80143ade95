// Package main is the entry point for the hone server.
// hone is a self-hosted personal finance waste detector: it ingests a
// ledger, classifies transactions, detects recurring charges and zombie
// subscriptions, reconciles receipts, and answers questions over the
// result through a small tool-calling orchestrator. There is no user
// management, no multi-tenancy, and no billing - it is a single-user
// service guarded by one static bearer token.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jmylchreest/hone/internal/ai"
	"github.com/jmylchreest/hone/internal/backup"
	"github.com/jmylchreest/hone/internal/config"
	"github.com/jmylchreest/hone/internal/database"
	"github.com/jmylchreest/hone/internal/http/handlers"
	"github.com/jmylchreest/hone/internal/http/mw"
	"github.com/jmylchreest/hone/internal/http/routes"
	"github.com/jmylchreest/hone/internal/insight"
	"github.com/jmylchreest/hone/internal/logging"
	"github.com/jmylchreest/hone/internal/orchestrator"
	"github.com/jmylchreest/hone/internal/prompts"
	"github.com/jmylchreest/hone/internal/repository"
	"github.com/jmylchreest/hone/internal/router"
	"github.com/jmylchreest/hone/internal/shutdown"
	"github.com/jmylchreest/hone/internal/tagassign"
	"github.com/jmylchreest/hone/internal/version"
	"github.com/jmylchreest/hone/internal/wastedetect"
	"github.com/jmylchreest/hone/internal/worker"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting hone",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.APIToken == "" {
		logger.Warn("HONE_API_TOKEN is not set - the API is running open, only safe on a trusted network")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	repos := repository.NewRepositories(db)

	promptLib := prompts.NewLibrary(cfg.PromptOverrideDir)

	r, err := router.New(cfg.RouterConfigPath)
	if err != nil {
		logger.Error("failed to load model router config", "error", err)
		os.Exit(1)
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		logger.Error("failed to build AI completer", "error", err)
		os.Exit(1)
	}
	backend := ai.New(completer, promptLib, r, repos.OllamaMetric)
	logger.Info("AI backend ready", "variant", cfg.AIBackend)

	registry := orchestrator.NewRegistry(repos)
	orch := orchestrator.New(completer, promptLib, registry, 4)

	assigner := tagassign.New(repos, backend, cfg.WorkerConcurrency, logger)
	detector := wastedetect.New(repos, backend, wastedetect.Config{}, logger)
	insights := insight.New(repos, backend, logger)

	var backupEng *backup.Engine
	if dbPath := sqliteFilePath(cfg.DatabaseURL); dbPath != "" {
		backupEng = backup.New(dbPath, cfg.BackupDir, "hone", cfg.BackupRetainDaily, logger)
		if cfg.UsesRemoteBackup() {
			remote, err := wireRemoteBackup(cfg)
			if err != nil {
				logger.Warn("remote backup store not configured", "error", err)
			} else {
				backupEng.SetRemote(remote)
				logger.Info("remote backup store enabled", "bucket", cfg.BackupS3Bucket, "endpoint", cfg.BackupS3Endpoint)
			}
		}
	} else {
		logger.Warn("database URL is not a local sqlite file path, disabling backup engine", "database_url", cfg.DatabaseURL)
	}

	bgWorker := worker.New(assigner, detector, insights, backupEng, worker.Config{
		CycleInterval:    cfg.WorkerPollInterval,
		TagBackfillLimit: 0,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	bgWorker.Start(ctx)

	h := handlers.New(repos, backend, r, registry, orch, backupEng, db)

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)

	// The same S3-compatible bucket used for remote backups doubles as a
	// config store: a dynamic IP blocklist and dynamic log filters, both
	// polled on a TTL so an operator can push updates without a restart.
	var logFiltersLoader *mw.LogFiltersLoader
	if cfg.UsesRemoteBackup() {
		s3Client, err := newS3Client(cfg)
		if err != nil {
			logger.Warn("S3 config loaders disabled", "error", err)
		} else {
			blocklist := mw.NewIPBlocklist(mw.BlocklistConfig{
				S3Client: s3Client,
				Bucket:   cfg.BackupS3Bucket,
				Key:      mw.DefaultBlocklistKey,
				Logger:   logger,
			})
			chiRouter.Use(blocklist.Middleware())

			logFiltersLoader = mw.NewLogFiltersLoader(mw.LogFiltersConfig{
				S3Client: s3Client,
				Bucket:   cfg.BackupS3Bucket,
				Key:      mw.DefaultLogFiltersKey,
				Logger:   logger,
			})
			logFiltersLoader.Start(ctx)

			logger.Info("S3 config loaders enabled", "bucket", cfg.BackupS3Bucket)
		}
	}

	chiRouter.Use(mw.APIVersion())
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)
	chiRouter.Use(mw.Cache(mw.DefaultCacheConfig()))
	chiRouter.Use(mw.Timeout(mw.DefaultTimeoutConfig(cfg.AITimeout)))
	chiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	chiRouter.Use(middleware.RequestSize(1 * 1024 * 1024))
	chiRouter.Use(httprate.LimitByIP(100, time.Minute))

	var idleMonitor *shutdown.IdleMonitor
	if cfg.IdleTimeout > 0 {
		idleMonitor = shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
			Timeout:             cfg.IdleTimeout,
			Logger:              logger,
			ExcludePaths:        []string{"/healthz", "/readyz"},
			BackgroundWorkCheck: bgWorker.Running,
		})
		idleMonitor.Start()
		chiRouter.Use(idleMonitor.Middleware)
		logger.Info("idle monitor enabled", "timeout", cfg.IdleTimeout.String())
	}

	humaConfig := routes.NewHumaConfig(cfg.BaseURL)
	api := humachi.New(chiRouter, humaConfig)
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{Token: cfg.APIToken}))
	routes.Register(api, h)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chiRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-sigChan:
		case <-shutdownChanOrNever(idleMonitor):
			logger.Info("idle timeout reached, shutting down")
		}

		logger.Info("shutting down server")

		cancel()
		bgWorker.Stop()
		if logFiltersLoader != nil {
			logFiltersLoader.Stop()
		}
		if idleMonitor != nil {
			idleMonitor.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// shutdownChanOrNever returns m's shutdown channel, or a channel that is
// never closed if idle monitoring is disabled.
func shutdownChanOrNever(m *shutdown.IdleMonitor) <-chan struct{} {
	if m == nil {
		return make(chan struct{})
	}
	return m.ShutdownChan()
}

// newCompleter builds the ai.ToolCompleter matching cfg's configured backend
// variant. It mirrors ai.NewBackend's variant switch, since the
// orchestrator needs the raw completer directly — with its native
// tool-calling protocol intact — rather than the higher-level Backend
// wrapper ai.NewBackend returns.
func newCompleter(cfg *config.Config) (ai.ToolCompleter, error) {
	switch cfg.AIBackend {
	case ai.BackendNative:
		if cfg.AIAPIKey == "" {
			return nil, fmt.Errorf("native AI backend requires AI_API_KEY")
		}
		return ai.NewNativeCompleter(cfg.AIAPIKey), nil
	case ai.BackendOpenAICompatible:
		return ai.NewOpenAICompatibleCompleter(cfg.AIHost, cfg.AIAPIKey), nil
	case ai.BackendMock, "":
		return ai.NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown AI backend variant %q", cfg.AIBackend)
	}
}

// sqliteFilePath extracts the filesystem path from a sqlite DSN of the form
// "file:path/to/db.sqlite[?params]", or returns "" if dsn isn't a local
// sqlite file reference.
func sqliteFilePath(dsn string) string {
	const prefix = "file:"
	if len(dsn) <= len(prefix) || dsn[:len(prefix)] != prefix {
		return ""
	}
	rest := dsn[len(prefix):]
	for i, c := range rest {
		if c == '?' {
			return rest[:i]
		}
	}
	return rest
}

// wireRemoteBackup constructs the backup engine's remote push/pull handle,
// pointed at an arbitrary S3-compatible endpoint (e.g. a self-hosted MinIO
// instance or Backblaze B2) via static credentials.
func wireRemoteBackup(cfg *config.Config) (*backup.RemoteStore, error) {
	client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}
	return backup.NewRemoteStore(client, cfg.BackupS3Bucket, "hone"), nil
}

// newS3Client builds an S3-compatible client from the backup credentials,
// shared by the remote backup store and the dynamic blocklist/log-filter
// config loaders that live in the same bucket.
func newS3Client(cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.BackupS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.BackupS3AccessKey, cfg.BackupS3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BackupS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BackupS3Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}
