package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/fitflow/internal/adapter/driven/fitbit"
	"github.com/ericfisherdev/fitflow/internal/adapter/driven/httpx"
	"github.com/ericfisherdev/fitflow/internal/adapter/driven/instagram"
	"github.com/ericfisherdev/fitflow/internal/adapter/driven/schedule"
	sqliteadapter "github.com/ericfisherdev/fitflow/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/fitflow/internal/adapter/driven/strava"
	httphandler "github.com/ericfisherdev/fitflow/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/fitflow/internal/adapter/driving/web"
	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/config"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and start all configured nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"http_timeout", cfg.HTTPTimeout,
		"flows_path", cfg.FlowsPath,
		"api_rate", cfg.APIRate,
	)
	if !cfg.HasSecretKey() {
		slog.Warn("FITFLOW_SECRET_KEY not set, credential storage disabled")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)

	// 5. Wire adapters. Each provider gets its own client so throttling is
	// per provider.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)

	fitbitHTTP := httpx.NewClient(cfg.HTTPTimeout, cfg.APIRate)
	stravaHTTP := httpx.NewClient(cfg.HTTPTimeout, cfg.APIRate)
	instagramHTTP := httpx.NewClient(cfg.HTTPTimeout, cfg.APIRate)

	fitbitAPI := fitbit.NewClient(fitbitHTTP, fitbit.DefaultEndpoints.APIBaseURL)
	mediaSource := instagram.NewClient(instagramHTTP, instagram.DefaultEndpoints.APIBaseURL)

	// 6. Create auth service.
	authSvc := application.NewAuthService(
		credentialStore,
		map[model.Provider]driven.OAuth1Client{
			model.ProviderFitbit: fitbit.NewOAuthClient(fitbitHTTP, fitbit.DefaultEndpoints),
		},
		map[model.Provider]driven.OAuth2Client{
			model.ProviderStrava:    strava.NewOAuthClient(stravaHTTP, strava.DefaultEndpoints),
			model.ProviderInstagram: instagram.NewOAuthClient(instagramHTTP, instagram.DefaultEndpoints),
		},
	)

	// 7. Create scheduler and node runtime, then register flows.
	scheduler, err := schedule.NewScheduler()
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("scheduler shutdown error", "error", err)
		}
	}()

	runtime := application.NewNodeRuntime(application.DefaultHistory)
	factory := application.NewNodeFactory(credentialStore, fitbitAPI, mediaSource, scheduler, cfg.PollInterval)

	specs, err := loadNodeSpecs(cfg.FlowsPath)
	if err != nil {
		return err
	}
	if err := factory.Register(runtime, specs); err != nil {
		return err
	}
	runtime.StartAll(ctx)
	defer runtime.StopAll()
	slog.Info("nodes started", "count", len(specs))

	// 8. Register API and authorization routes.
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(runtime, slog.Default()))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(authSvc, slog.Default()))

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("fitflow started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadNodeSpecs reads the flows file. A missing file means no nodes.
func loadNodeSpecs(path string) ([]application.NodeSpec, error) {
	flows, err := config.LoadFlows(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no flows file, starting without nodes", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return flows.NodeSpecs()
}
