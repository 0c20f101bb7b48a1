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
	"time"

	_ "github.com/lib/pq"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/background"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/config"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/database"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/handlers"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/routes"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/storage"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, flush := pkglogger.New(pkglogger.Options{
		Env:       cfg.Server.Env,
		Level:     cfg.Server.LogLevel,
		SentryDSN: cfg.Observability.SentryDSN,
	})
	defer flush()
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := migrate(&cfg.Database, logger); err != nil {
		return err
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sender, err := newEmailService(ctx, &cfg.Email, logger)
	if err != nil {
		return err
	}
	mailQueue := background.NewMailQueue(sender, background.MailQueueConfig{
		Size:         cfg.Email.QueueSize,
		Workers:      cfg.Email.Workers,
		MaxAttempts:  cfg.Email.MaxAttempts,
		RetryBackoff: cfg.Email.RetryBackoff,
	}, logger)
	mailCtx, mailCancel := context.WithCancel(context.Background())
	defer mailCancel()
	mailQueue.Start(mailCtx)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	folderRepo := repositories.NewFolderRepository(db)
	fileRepo := repositories.NewFileRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	passwordHasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	otpManager := auth.NewOTPManager(pkgauth.NewHasher(cfg.Auth.OTPBcryptCost), cfg.Auth.OTPTTL)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		MinDuration: cfg.Auth.TimingMinDelay,
		Jitter:      cfg.Auth.TimingJitter,
	})

	// Initialize services
	otpService := services.NewOTPService(userRepo, otpManager, mailQueue, logger)
	authService, err := services.NewAuthService(userRepo, sessionRepo, otpService, passwordHasher, timingDelay, cfg.Auth.SessionTTL, logger, auditLogger)
	if err != nil {
		return err
	}
	accountService := services.NewAccountService(userRepo, fileRepo, otpService, passwordHasher, store, cfg.Storage.MaxAvatarSize, logger, auditLogger)
	folderService := services.NewFolderService(folderRepo, fileRepo, logger, auditLogger)
	fileService := services.NewFileService(fileRepo, store, cfg.Storage.MaxFileSize, cfg.Storage.MaxFiles, cfg.Storage.UploadParallel, logger)

	// Initialize handlers
	codec := auth.NewSessionCodec(cfg.Auth.SessionSecret)
	cookies := auth.CookieConfig{
		Name:     cfg.Auth.CookieName,
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Server.IsProduction(),
		SameSite: cfg.Auth.CookieSameSite,
	}
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	router := routes.NewRouter(routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService, codec, cookies, ipConfig, logger),
		Users:   handlers.NewUserHandler(accountService, cookies, cfg.Storage.MaxAvatarSize, logger),
		Folders: handlers.NewFolderHandler(folderService, logger),
		Files:   handlers.NewFileHandler(fileService, cfg.Storage.MaxFileSize, cfg.Storage.MaxFiles, logger),
	}, routes.Options{
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Codec:          codec,
		Sessions:       authService,
		Cookies:        cookies,
		RateLimit:      cfg.RateLimit,
		Health:         db.HealthCheck,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(sessionRepo, logger, cfg.Auth.CleanupInterval)
	go cleanupManager.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}
	cleanupManager.Stop()
	if err := mailQueue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("mail queue did not drain", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
	return nil
}

// migrate applies pending schema migrations over a short-lived
// database/sql connection.
func migrate(dbCfg *config.DatabaseConfig, logger *slog.Logger) error {
	sqlDB, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return err
	}
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Provider, error) {
	if cfg.Storage.Bucket == "" {
		if cfg.Server.IsProduction() {
			return nil, errors.New("S3_BUCKET is required in production")
		}
		logger.Warn("S3_BUCKET not set, storing objects in memory")
		return storage.NewMemory("http://localhost:" + cfg.Server.Port + "/objects"), nil
	}

	s3Store, err := storage.NewS3Storage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	return s3Store, nil
}

func newEmailService(ctx context.Context, cfg *config.EmailConfig, logger *slog.Logger) (services.EmailService, error) {
	switch cfg.Provider {
	case "ses":
		svc, err := services.NewAWSSESEmailService(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize email service: %w", err)
		}
		return svc, nil
	case "resend":
		return services.NewResendEmailService(cfg.ResendAPIKey, cfg.FromAddress, logger), nil
	default:
		logger.Warn("EMAIL_PROVIDER=log, codes are written to the log")
		return services.NewLogEmailService(logger), nil
	}
}
