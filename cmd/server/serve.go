package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/database"
	"github.com/iliyamo/image-tattoo/internal/handler"
	"github.com/iliyamo/image-tattoo/internal/middleware"
	"github.com/iliyamo/image-tattoo/internal/repository"
	"github.com/iliyamo/image-tattoo/internal/router"
	"github.com/iliyamo/image-tattoo/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

The database schema is created on startup.  Redis (rate limiting and the
GET /images response cache) and RabbitMQ (domain events) are optional.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "listen port (overrides APP_PORT)")
}

// serve runs until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// the server down.  A listener that fails to start is returned as an error.
func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("database close error", "err", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	cacheCfg := config.LoadCacheConfig()

	images := handler.NewImageHandler(cfg,
		repository.NewImageRepo(db),
		service.NewWatermarkService(codec, cfg.DefaultToken),
		service.NewVerifyService(codec),
		service.NewPublisher(cfg.RabbitMQURL),
	)
	images.Invalidate = func(ctx context.Context) error {
		return middleware.InvalidateCache(ctx, rdb, cacheCfg.Prefix)
	}
	auth := handler.NewAuthHandler(service.NewAuthService(cfg, repository.NewUserRepo(db)))

	e := newEcho(cfg)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg.JWTSecret, limit)
	router.RegisterImages(e, images, router.ImageRouteOptions{
		AuthRequired: cfg.AuthRequired,
		JWTSecret:    cfg.JWTSecret,
		DeleteRoles:  cfg.DeleteRoles,
		RateLimit:    limit,
		Cache:        middleware.NewRedisCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	startErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver, "codec", cfg.MetadataCodec)
		startErr <- e.Start(addr)
	}()

	select {
	case err := <-startErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}
	return nil
}

func newEcho(cfg config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = &handler.RequestValidator{}

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRoutePath: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Pre(echomw.RemoveTrailingSlash())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	return e
}
