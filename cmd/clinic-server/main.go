package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/domain/activity"
	"github.com/medicore/medicore/internal/domain/audit"
	"github.com/medicore/medicore/internal/domain/auth"
	"github.com/medicore/medicore/internal/domain/otp"
	"github.com/medicore/medicore/internal/domain/principal"
	platauth "github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/internal/platform/hipaa"
	"github.com/medicore/medicore/internal/platform/mailer"
	"github.com/medicore/medicore/internal/platform/middleware"
)

var migrationsDir string

func main() {
	root := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic authentication, session, and audit backend",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "./migrations", "migrations directory")

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	}

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied " + st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%03d  %-40s %s\n", st.Version, st.Name, state)
				}
				return nil
			})
		},
	}
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)

	root.AddCommand(serveCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrationsDir))
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	return logger
}

// ephemeralSecret mints a per-process secret for development when the
// corresponding environment option is unset. Sessions do not survive a
// restart with an ephemeral secret.
func ephemeralSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}

func resolveSecrets(cfg *config.Config, logger zerolog.Logger) (access, refresh []byte) {
	access = []byte(cfg.JWTAccessSecret)
	refresh = []byte(cfg.JWTRefreshSecret)
	if len(access) == 0 {
		logger.Warn().Msg("JWT_ACCESS_SECRET not set, using an ephemeral development secret")
		access = ephemeralSecret()
	}
	if len(refresh) == 0 {
		logger.Warn().Msg("JWT_REFRESH_SECRET not set, using an ephemeral development secret")
		refresh = ephemeralSecret()
	}
	return access, refresh
}

func newSessionStore(cfg *config.Config, logger zerolog.Logger) (platauth.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("using in-memory session store")
		store := platauth.NewMemorySessionStore()
		return store, store.Close, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info().Msg("using redis session store")
	return platauth.NewRedisSessionStore(client), func() { client.Close() }, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	logger.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting clinic-server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	cancel()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	sessions, closeSessions, err := newSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	accessSecret, refreshSecret := resolveSecrets(cfg, logger)
	tokens, err := platauth.NewTokenManager(platauth.ManagerConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     cfg.AccessExpiry(),
		RefreshTTL:    cfg.RefreshExpiry(),
	}, sessions)
	if err != nil {
		return err
	}

	encKey := cfg.EncryptionKeyBytes()
	if len(encKey) == 0 {
		logger.Warn().Msg("ENCRYPTION_KEY not set, audit field encryption is disabled")
	}
	enc, err := hipaa.NewEncryptionService(encKey, logger)
	if err != nil {
		return err
	}

	sender := mailer.NewSMTPSender(mailer.Config{
		Service: cfg.EmailService,
		User:    cfg.EmailUser,
		Pass:    cfg.EmailPass,
	})

	// Repositories and services.
	principals := principal.NewRepoPG(pool)
	directory := principal.NewDirectory(principals)

	otpSvc := otp.NewService(otp.NewRepoPG(pool), sender, logger)
	activitySvc := activity.NewService(activity.NewRepoPG(pool), logger)
	auditSvc := audit.NewService(audit.NewRepoPG(pool), enc, logger)
	authSvc := auth.NewService(directory, principals, otpSvc, tokens, activitySvc, logger)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	otpSvc.StartSweeper(sweepCtx, time.Hour)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-Refresh-Token"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		WindowMS:    cfg.RateLimitWindowMS,
		MaxRequests: cfg.RateLimitMaxRequests,
	}))

	auth.NewHandler(authSvc, tokens).RegisterRoutes(api.Group("/auth"))

	protected := api.Group("", platauth.Middleware(tokens))
	activity.NewHandler(activitySvc).RegisterRoutes(protected)
	audit.NewHandler(auditSvc).RegisterRoutes(protected)

	// Serve until interrupted, then drain in-flight requests.
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.Port)
	}()
	logger.Info().Str("addr", ":"+cfg.Port).Msg("listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}

	logger.Info().Msg("stopped")
	return nil
}
