package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/chartexport"
	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/domain/visit"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/blobstore"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/jobs"
	"github.com/odonto/odonto/internal/platform/metrics"
	"github.com/odonto/odonto/internal/platform/middleware"
	"github.com/odonto/odonto/internal/platform/templates"
	"github.com/odonto/odonto/internal/platform/websocket"
	"github.com/odonto/odonto/migrations"
)

const (
	exportRetention   = 24 * time.Hour
	exportPruneEvery  = time.Hour
	rateLimitPruneAge = 10 * time.Minute
	templateTimeout   = 10 * time.Second
	templateRetries   = 2
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "odonto-server",
		Short: "Dental odontogram API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the odontogram API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
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
	})

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the odontogram of a visit to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("visit")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("--visit must be a visit id: %w", err)
			}
			if format != visit.FormatPDF && format != visit.FormatXLSX {
				return fmt.Errorf("--format must be %q or %q", visit.FormatPDF, visit.FormatXLSX)
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger := newLogger(cfg.Env)

			visits := visit.NewService(visit.NewRepo(pool), patient.NewService(patient.NewRepo(pool)), logger)
			doc, err := visits.Document(ctx, id)
			if err != nil {
				return err
			}

			var data []byte
			if format == visit.FormatXLSX {
				data, err = chartexport.Spreadsheet(doc)
			} else {
				fetcher := templates.NewFetcher(templateConfig(cfg), templates.NewMemoryCache(), logger)
				data, err = chartexport.NewBuilder(fetcher, cfg.ExportScale, logger).Build(ctx, doc)
			}
			if err != nil {
				return err
			}

			if out == "" {
				out = doc.FileName(format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d bytes).\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().String("visit", "", "Visit id")
	cmd.Flags().String("format", visit.FormatPDF, "Output format (pdf or xlsx)")
	cmd.Flags().String("out", "", "Output file, defaults to the download name")
	return cmd
}

func templateConfig(cfg *config.Config) templates.Config {
	return templates.Config{
		URLs: map[chartexport.Sheet]string{
			chartexport.SheetFront: cfg.TemplateFrontURL,
			chartexport.SheetBack:  cfg.TemplateBackURL,
		},
		CacheTTL: cfg.TemplateCacheTTL,
		Timeout:  templateTimeout,
		Retries:  templateRetries,
	}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	switch cfg.AuthMode() {
	case "development":
		return auth.DevAuthMiddleware()
	case "hmac":
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	default:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		})
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Templates
	var cache templates.Cache = templates.NewMemoryCache()
	if cfg.RedisURL != "" {
		rc, err := templates.NewRedisCacheFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching templates in memory")
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	fetcher := templates.NewFetcher(templateConfig(cfg), cache, logger)
	if err := fetcher.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial template load failed")
	}
	builder := chartexport.NewBuilder(fetcher, cfg.ExportScale, logger)

	sessions := odontogram.NewSessionStore()
	sessions.Observe(metrics.Sessions{})
	hub := websocket.NewHub(logger)
	exports := blobstore.NewInMemoryBlobStore()
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	// Background jobs
	scheduler := jobs.NewScheduler(jobs.Config{
		RefreshInterval: cfg.TemplateRefreshInterval,
		SessionIdle:     cfg.SessionIdleTimeout,
	}, fetcher, sessions, logger)
	scheduler.AddCleanup("rate_limit_buckets", rateLimitPruneAge, limiter.Prune)
	scheduler.AddCleanup("stored_exports", exportPruneEvery, func() int { return exports.Prune(exportRetention) })
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(middleware.TimeoutConfig{
		Default: cfg.RequestTimeout,
		Export:  cfg.ExportTimeout,
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "sessions": sessions.Len(), "live_clients": hub.ClientCount()})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// API
	apiV1 := e.Group("/api/v1", authMiddleware(cfg), limiter.Middleware())

	patientSvc := patient.NewService(patient.NewRepo(pool))
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	visitSvc := visit.NewService(visit.NewRepo(pool), patientSvc, logger)
	visit.NewHandler(visitSvc, hub).RegisterRoutes(apiV1)
	visit.NewSessionHandler(visitSvc, sessions, hub).RegisterRoutes(apiV1)
	visit.NewExportHandler(visitSvc, builder, exports, logger).RegisterRoutes(apiV1)

	staffGroup := apiV1.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	blobstore.NewBlobHandler(exports).RegisterRoutes(staffGroup)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(staffGroup)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth", cfg.AuthMode()).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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
