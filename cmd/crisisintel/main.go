package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/config"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/booking"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/hospital"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/provider"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/db"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/middleware"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/notify"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crisisintel",
		Short: "CrisisIntel booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// pgAuditRecorder persists audit entries best-effort; a failed insert must
// never fail the audited request.
func pgAuditRecorder(pool *pgxpool.Pool) middleware.AuditRecorderFunc {
	return func(entry middleware.AuditEntry) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := pool.Exec(ctx, `
			INSERT INTO audit_logs (user_id, user_role, resource, resource_id, action,
				ip_address, user_agent, path, method, admin_override, request_id,
				status_code, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			entry.UserID, entry.UserRole, entry.Resource, entry.ResourceID, entry.Action,
			entry.IPAddress, entry.UserAgent, entry.Path, entry.Method, entry.AdminOverride,
			entry.RequestID, entry.StatusCode, entry.Timestamp)
		return err
	}
}

// pgMetricsRecorder samples request timings into api_metrics, best-effort.
func pgMetricsRecorder(pool *pgxpool.Pool) middleware.MetricsRecorderFunc {
	return func(entry middleware.MetricsEntry) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := pool.Exec(ctx, `
			INSERT INTO api_metrics (path, method, status_code, duration_ms, user_id, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
			entry.Path, entry.Method, entry.StatusCode, entry.DurationMS,
			entry.UserID, entry.Timestamp)
		return err
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Serialization backend for provider-day allocation.
	var locker db.Locker
	switch cfg.LockBackend {
	case "lease":
		locker = db.NewLeaseLocker(pool, cfg.LockLease())
	default:
		locker = db.NewAdvisoryLocker(pool)
	}
	logger.Info().Str("backend", cfg.LockBackend).Msg("booking locker ready")

	// Notifications: persist, push over the hub, optionally mirror to AMQP.
	hub := notify.NewHub()
	store := notify.NewStorePG(pool)
	var notifier notify.Notifier = notify.NewHubNotifier(hub, store, logger)
	if cfg.AMQPURL != "" {
		notifier = notify.Fanout{
			notifier,
			notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue, logger),
		}
		logger.Info().Str("queue", cfg.AMQPQueue).Msg("AMQP notifications enabled")
	}

	// Domain services. The provider service answers availability questions
	// and the hospital service manages the bed pool for the booking engine.
	providerSvc := provider.NewService(provider.NewRepoPG(pool), cfg.WindowCacheTTL(), logger)
	hospitalSvc := hospital.NewService(hospital.NewRepoPG(pool), logger)
	bookingSvc := booking.NewService(booking.NewRepoPG(pool), providerSvc, hospitalSvc,
		locker, notifier, logger, booking.Options{
			LockWait:      cfg.LockWait(),
			CancelCutoff:  cfg.CancelCutoff(),
			ImmediateLead: cfg.ImmediateLead(),
		})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
		logger.Warn().Msg("dev auth enabled, requests are trusted by header")
	} else {
		e.Use(auth.Middleware(cfg.JWTSecret))
	}

	e.Use(middleware.Audit(logger, pgAuditRecorder(pool)))
	e.Use(middleware.Metrics(logger, pgMetricsRecorder(pool)))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)
	provider.NewHandler(providerSvc).RegisterRoutes(apiV1)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(apiV1)
	notify.NewHandler(store).RegisterRoutes(apiV1)
	notify.NewWSHandler(hub, logger).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
