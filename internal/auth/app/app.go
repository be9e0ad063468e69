package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	httpapi "github.com/aussiebroadwan/autopay/internal/auth/http"
	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/autopay/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

const sentryFlushTimeout = 2 * time.Second

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	issuer *jwtx.Issuer

	// Services
	authService         *service.AuthService
	auditLog            *service.AuditLog
	notifier            *service.AsyncNotifier
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initSentry(); err != nil {
		return nil, err
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	issuer, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Key:       []byte(cfg.JWTSecret),
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		AccessTTL: cfg.AccessTTL,
		Leeway:    cfg.TokenLeeway,
	})
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.issuer = issuer

	app.initServices()
	app.initHTTP()

	app.logger.Debug("configuration loaded", "config", fmt.Sprintf("%+v", cfg.Redacted()))
	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Start launches the background workers. Run calls it; tests serving
// Handler themselves must call it before Shutdown.
func (app *Application) Start() {
	app.auditLog.Start()
	app.housekeepingService.Start()
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"driver", app.cfg.DatabaseDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application. In-flight requests finish
// first, then queued notifications and audit events are flushed before the
// database closes.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.notifier.Wait()
	app.auditLog.Stop()

	sentry.Flush(sentryFlushTimeout)

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initSentry() error {
	if app.cfg.SentryDSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              app.cfg.SentryDSN,
		Environment:      app.cfg.Env,
		Release:          "auth-service@" + BuildVersion,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	app.logger.Info("sentry error reporting enabled")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.Options{
			MaxOpenConns:    app.cfg.DBMaxOpenConns,
			MaxIdleConns:    app.cfg.DBMaxIdleConns,
			ConnMaxLifetime: app.cfg.DBConnMaxLifetime,
		})
	default:
		db, err = sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.auditLog = service.NewAuditLog(app.db, app.logger, app.cfg.AuditBuffer)
	app.auditLog.Timeout = app.cfg.StorageTimeout

	app.notifier = service.NewAsyncNotifier(service.LogNotifier{Logger: app.logger})

	admins := make([]string, 0, len(app.cfg.AdminEmails))
	for _, e := range app.cfg.AdminEmails {
		admins = append(admins, strings.ToLower(strings.TrimSpace(e)))
	}

	app.authService = service.New(service.Deps{
		Store:       app.db,
		Tokens:      app.issuer,
		Audit:       app.auditLog,
		Notifier:    app.notifier,
		Authorities: service.StaticAuthorities{AdminEmails: admins},
	}, service.Config{
		MaxFailedAttempts: app.cfg.MaxFailedAttempts,
		LockoutDuration:   app.cfg.LockoutDuration.Duration(),
		RefreshTTL:        app.cfg.RefreshTTL,
		MFAIssuer:         app.cfg.MFAIssuer,
		StorageTimeout:    app.cfg.StorageTimeout,
	})

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SessionRetention,
		app.cfg.AuditRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.authService,
		app.db,
		BuildVersion,
		app.logger,
		app.cfg.TrustProxy,
	)
	router.GatewayToken = app.cfg.GatewayToken
	router.ApplyRoutes()

	if app.cfg.GatewayToken == "" {
		app.logger.Warn("AUTH_GATEWAY_TOKEN not set, identity login is disabled")
	}

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
