package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/cleanlist/pkg/config"
	"github.com/ekaya-inc/cleanlist/pkg/handlers"
	"github.com/ekaya-inc/cleanlist/pkg/middleware"
	"github.com/ekaya-inc/cleanlist/pkg/services"
	"github.com/ekaya-inc/cleanlist/ui"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting cleanlist", zap.String("version", Version))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := services.NewSessionManager(a.pipeline, cfg.Session.IdleTTL(), logger)
	handler := newServerHandler(cfg, a, sessions, logger)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening",
			zap.String("addr", addr),
			zap.String("base_url", cfg.BaseURL),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	})

	g.Go(func() error {
		return sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// newServerHandler registers every route and wraps the mux in the
// recovery and request logging middleware.
func newServerHandler(cfg *config.Config, a *app, sessions *services.SessionManager, logger *zap.Logger) http.Handler {
	secret := cfg.Session.Secret
	if secret == "" {
		// Cookies will not survive a restart; neither do sessions.
		secret = uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a per-process cookie key")
	}
	cookie := handlers.NewSessionCookie(secret, cfg.Session.CookieSecure, cfg.Session.IdleTTL())

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, sessions, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(a.schema, logger).RegisterRoutes(mux)
	handlers.NewSessionsHandler(sessions, cookie, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux)
	handlers.NewTemplatesHandler(a.templates, sessions, cookie, logger).RegisterRoutes(mux)
	mux.Handle("GET /", ui.Handler())

	return middleware.Recoverer(logger)(middleware.RequestLogger(logger)(mux))
}
