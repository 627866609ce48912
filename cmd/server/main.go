package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/api"
	"github.com/example/studentkit/internal/cache"
	"github.com/example/studentkit/internal/config"
	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/crypto"
	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/firebase"
	"github.com/example/studentkit/internal/logging"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/middleware"
	"github.com/example/studentkit/internal/models"
	"github.com/example/studentkit/internal/notify"
	"github.com/example/studentkit/internal/ums"
)

func main() {
	// --- 1. Load configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize logger (zap) ---
	zapLogger, err := logging.New(appConfig.LogLevel, appConfig.IsRelease())
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync() // Flushes buffered entries before exit.
	zapLogger.Info("Application configuration loaded",
		zap.String("storeDriver", appConfig.StoreDriver), zap.String("port", appConfig.Port))

	if err := run(appConfig, zapLogger); err != nil {
		zapLogger.Fatal("Server stopped with error", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}

// run wires the application and serves HTTP until SIGINT/SIGTERM. Deferred cleanups run
// in reverse order, so listeners and consumers stop before the store is closed.
func run(appConfig *config.Config, zapLogger *zap.Logger) error {
	// Cancelled on the first SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 3. Open the document store and Firebase Auth ---
	// STORE_DRIVER picks Firestore (production) or SQLite (local development and tests).
	initCtx, cancelInit := context.WithTimeout(ctx, 15*time.Second)
	store, authClient, err := db.Open(initCtx, appConfig, zapLogger)
	cancelInit()
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", appConfig.StoreDriver, err)
	}
	defer store.Close()

	// One adapter serves both account management and token verification.
	var authProvider interface {
		core.AuthProvider
		middleware.TokenVerifier
	} = firebase.Disabled{}
	if authClient != nil {
		authProvider = firebase.NewAuth(authClient)
	} else {
		zapLogger.Warn("FIREBASE_PROJECT_ID is not set; authenticated endpoints will reject every request")
	}

	// --- 4. Metrics ---
	// Go runtime and process collectors sit next to the application metrics on /metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	// --- 5. Cache and UMS client ---
	// Only UMS portal responses are cached. Redis when REDIS_ADDR is set, otherwise in memory.
	var responseCache cache.Cache = cache.NewMemoryCache()
	if appConfig.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
			Prefix:   "studentkit:",
		}, zapLogger)
		if err != nil {
			return err
		}
		responseCache = rc
	}
	// Cached portal data includes student details; seal it when a key is configured.
	if appConfig.CacheEncryptionKey != "" {
		key, err := crypto.KeyFromBase64(appConfig.CacheEncryptionKey)
		if err != nil {
			return fmt.Errorf("CACHE_ENCRYPTION_KEY: %w", err)
		}
		sealer, err := crypto.NewSealer(key)
		if err != nil {
			return err
		}
		responseCache = cache.NewSealedCache(responseCache, sealer)
	}
	defer responseCache.Close()
	umsClient := ums.NewClient(ums.Options{
		BaseURL:  appConfig.UMSBaseURL,
		Timeout:  appConfig.UMSTimeout,
		Cache:    responseCache,
		CacheTTL: appConfig.CacheTTL,
	}, zapLogger)

	// --- 6. Notifications ---
	// Share events go to RabbitMQ, SMTP or the log depending on configuration.
	notifier, closeNotifier, err := setupNotifier(ctx, appConfig, zapLogger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	// --- 7. Repositories and services ---
	profileRepo := db.NewProfileRepository(store)
	userRepo := db.NewUserRepository(store)

	profileService := core.NewProfileService(profileRepo, db.NewSharedProfileRepository(store), userRepo, zapLogger, appMetrics,
		core.ProfileServiceOptions{LoadAttempts: appConfig.InitRetries, RetryDelay: appConfig.InitRetryDelay})
	defer profileService.Close() // Stops real-time listeners.
	collaborationService := core.NewCollaborationService(db.NewCollaborativeRepository(store), profileRepo, userRepo, notifier, zapLogger, appMetrics)
	defer collaborationService.Close()

	services := api.Services{
		Profiles:      profileService,
		Sharing:       core.NewSharingService(profileRepo, db.NewUserShareRepository(store), userRepo, notifier, zapLogger),
		Collaboration: collaborationService,
		Accounts: core.NewAccountService(authProvider, store, profileService, zapLogger, appMetrics,
			core.AccountServiceOptions{RecentLoginWindow: appConfig.RecentLoginWindow}),
		UMS: core.NewUMSImportService(umsClient, profileRepo, userRepo, zapLogger, appMetrics),
	}
	zapLogger.Info("Core services initialized successfully.")

	// --- 8. Gin engine and global middleware ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New() // gin.New() instead of gin.Default() so zap replaces gin's logger.
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.Metrics(appMetrics))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}

	api.SetupRoutes(router, appConfig, zapLogger, authProvider, services, appMetrics)
	zapLogger.Info("API routes configured.")

	// --- 9. HTTP server with graceful shutdown ---
	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// ListenAndServe runs until Shutdown or Close; any other error ends run.
	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Block until the server fails or a shutdown signal arrives.
	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		zapLogger.Info("Received shutdown signal")
	}

	// In-flight requests get 10 seconds to complete.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		// Event streams stay open until their connection goes away.
		zapLogger.Warn("Server forced to shutdown", zap.Error(err))
		_ = httpServer.Close()
	}
	return nil
}

// setupNotifier picks how share events are delivered: through RabbitMQ when configured
// (with a consumer that mails them when SMTP is configured too), directly by SMTP, or
// only to the log.
func setupNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.Notifier, func(), error) {
	var mailer notify.Mailer
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}

	if cfg.RabbitMQURL == "" {
		if mailer != nil {
			logger.Info("Share notifications are sent by SMTP", zap.String("host", cfg.SMTPHost))
			return notify.NewMailNotifier(mailer, cfg.SMTPFrom, logger), func() {}, nil
		}
		logger.Info("Share notifications are only logged")
		return notify.NewLogNotifier(logger), func() {}, nil
	}

	mq, err := notify.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueue, logger)
	if err != nil {
		return nil, nil, err
	}
	// The consumer runs in this process and delivers what the services publish.
	consumerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var deliver func(context.Context, models.ShareEvent) error
		if mailer != nil {
			deliver = notify.NewMailNotifier(mailer, cfg.SMTPFrom, logger).Notify
		} else {
			deliver = notify.NewLogNotifier(logger).Notify
		}
		if err := mq.Consume(consumerCtx, deliver); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Share event consumer stopped", zap.Error(err))
		}
	}()
	return mq, func() {
		// Stop consuming before closing the connection the consumer reads from.
		cancel()
		<-done
		if err := mq.Close(); err != nil {
			logger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}, nil
}
