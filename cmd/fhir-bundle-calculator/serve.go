package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/config"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/calcrun"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/cqlresult"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/measurereport"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/auth"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/db"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/middleware"
)

const serviceName = "fhir-bundle-calculator"

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calculator API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg, os.Stdout)
			return runServer(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().String("port", "", "Listen port (default $PORT)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	e := newServer(cfg, logger, st)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Bool("auth", cfg.AuthEnabled()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with middleware and routes. st may be
// nil, in which case the run history routes are not mounted.
func newServer(cfg *config.Config, logger zerolog.Logger, st *store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Tracing(serviceName))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	var computeMW, readMW []echo.MiddlewareFunc
	if cfg.AuthEnabled() {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
		}))
		computeMW = append(computeMW, auth.RequireRole(auth.RoleCalculator))
		readMW = append(readMW, auth.RequireRole(auth.RoleReader, auth.RoleCalculator))
	} else {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, API is unauthenticated")
	}

	// Health check
	if st != nil {
		e.GET("/health", db.HealthHandler(st.driver, st.ping))
	} else {
		e.GET("/health", db.HealthHandler(config.StoreNone, nil))
	}

	compute := e.Group("/api/v1", computeMW...)
	measurereport.NewHandler().RegisterRoutes(compute)
	cqlresult.NewHandler().RegisterRoutes(compute)

	if st != nil {
		read := e.Group("/api/v1", readMW...)
		calcrun.NewHandler(st.runs).RegisterRoutes(read)
	}

	return e
}
