package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoscore/internal/api"
	"videoscore/internal/config"
	"videoscore/internal/logger"
	"videoscore/internal/models"
	"videoscore/internal/observability"
	"videoscore/internal/storage"
	"videoscore/internal/throttle"
	"videoscore/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	activeStorage := storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	// Build the throttle guards and their reaper
	guards, reaper, err := buildGuards(cfg)
	if err != nil {
		slog.Error("Failed to configure request throttling", "error", err)
		os.Exit(1)
	}
	if reaper != nil {
		reaper.Start()
		defer reaper.Stop()
	}

	handlers := api.NewHandlers(activeStorage)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router, err := api.SetupRoutes(handlers, cfg, guards, routeOpts...)
	if err != nil {
		slog.Error("Failed to set up routes", "error", err)
		os.Exit(1)
	}

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "version", version.GetInfo().Version)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// buildGuards assembles the four throttle guards from configuration and a
// reaper covering all of their stores. Disabled throttling returns empty
// guards and no reaper.
func buildGuards(cfg *models.Config) (api.Guards, *throttle.Reaper, error) {
	tc := cfg.Security.Throttle
	if !tc.Enabled {
		return api.Guards{}, nil, nil
	}

	var hook throttle.DecisionHook
	if cfg.Metrics.Enabled {
		h, err := observability.ThrottleDecisionHook()
		if err != nil {
			return api.Guards{}, nil, fmt.Errorf("create throttle metrics: %w", err)
		}
		hook = h
	}

	newGuard := func(name string, window time.Duration, max int, message string, keyFunc throttle.KeyFunc, mutate func(*throttle.Policy)) (*throttle.Guard, error) {
		policy, err := throttle.NewPolicy(name, window, max, message, keyFunc)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", name, err)
		}
		if mutate != nil {
			mutate(policy)
		}
		opts := []throttle.Option{}
		if hook != nil {
			opts = append(opts, throttle.WithDecisionHook(hook))
		}
		return throttle.NewGuard(policy, throttle.NewWindowStore(), opts...)
	}

	general, err := newGuard("general", tc.General.Window, tc.General.MaxRequests, tc.General.Message, throttle.IPKey, func(p *throttle.Policy) {
		p.SkipSuccessful = tc.General.SkipSuccessful
	})
	if err != nil {
		return api.Guards{}, nil, err
	}

	auth, err := newGuard("auth", tc.Auth.Window, tc.Auth.MaxRequests, tc.Auth.Message, throttle.IPKey, func(p *throttle.Policy) {
		p.SkipSuccessful = tc.Auth.SkipSuccessful
	})
	if err != nil {
		return api.Guards{}, nil, err
	}

	login, err := newGuard("login", tc.Login.Window, tc.Login.MaxAttempts, tc.Login.Message, throttle.EmailKey, func(p *throttle.Policy) {
		p.ResetOnSuccess = true
	})
	if err != nil {
		return api.Guards{}, nil, err
	}

	heavy, err := newGuard("heavy", tc.Heavy.Window, tc.Heavy.MaxRequests, tc.Heavy.Message, throttle.IPKey, func(p *throttle.Policy) {
		p.SkipSuccessful = tc.Heavy.SkipSuccessful
	})
	if err != nil {
		return api.Guards{}, nil, err
	}

	reaper := throttle.NewReaper(tc.CleanupInterval,
		general.Store(), auth.Store(), login.Store(), heavy.Store())

	return api.Guards{
		General: general,
		Auth:    auth,
		Login:   login,
		Heavy:   heavy,
	}, reaper, nil
}
