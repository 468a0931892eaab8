package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/auth"
	"github.com/frahmantamala/hse-inspection/internal/inspection"
	"github.com/frahmantamala/hse-inspection/internal/notification"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/transport/middleware"
	"github.com/frahmantamala/hse-inspection/internal/transport/rest"
	"github.com/frahmantamala/hse-inspection/internal/transport/swagger"
	"github.com/frahmantamala/hse-inspection/internal/user"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var specPath string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and serve the frontend`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().StringVar(&specPath, "spec", "api/openapi.yml", "OpenAPI document to validate and serve; empty disables it")
}

func startHTTPServer() {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	if specPath != "" {
		doc, err := swagger.LoadSpec(context.Background(), specPath)
		if err != nil {
			lg.Error("invalid OpenAPI document", "path", specPath, "error", err)
			os.Exit(1)
		}
		lg.Info("OpenAPI document loaded", "path", specPath, "operations", len(swagger.Operations(doc)))
	}

	router := chi.NewRouter()
	setupRoutes(router, deps)

	jobs, err := startJobs(deps)
	if err != nil {
		lg.Error("failed to schedule background jobs", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("Starting HTTP server", "address", addr, "driver", cfg.Database.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			lg.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
		}
	}

	<-jobs.Stop().Done()
	if err := deps.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}
	lg.Info("Server stopped")
}

func setupRoutes(router *chi.Mux, deps *Dependencies) {
	cfg := deps.Config
	base := transport.NewBaseHandler(deps.Logger)
	guard := auth.NewGuard(base, deps.Auth, deps.Audit, deps.AuthMetrics)

	opts := rest.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		SpecPath:       specPath,
	}
	// Validated at load time.
	opts.TrustedProxies, _ = internal.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if cfg.Observability.Metrics.Enabled {
		opts.Gatherer = prometheus.Gatherer(deps.Registry)
		opts.MetricsPath = cfg.Observability.Metrics.Path
		opts.HTTPMetrics = middleware.NewHTTPMetrics(deps.Registry)
	}

	rest.RegisterAllRoutes(router, base, guard, deps.Auth, rest.Handlers{
		Auth:         auth.NewHandler(base, deps.Auth, cfg.Security.SessionDuration, cfg.Security.SecureCookie),
		Users:        user.NewHandler(base, deps.Users),
		Audit:        audit.NewHandler(base, deps.Audit),
		Notification: notification.NewHandler(base, deps.Notifications),
		Inspection:   inspection.NewHandler(base, deps.Inspections),
		Health:       rest.NewHealthHandler(base, deps.Store, cfg.Database.Driver),
	}, opts)
}
