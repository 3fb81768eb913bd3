package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmoweather/internal/cache"
	"cosmoweather/internal/config"
	"cosmoweather/internal/httpapi"
	"cosmoweather/internal/meteo"
	"cosmoweather/internal/models"
	"cosmoweather/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "cosmoweather"

func main() {
	cfg := config.Load()

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	shutdownObs, promHandler, tracer := observability.Setup(serviceName, cfg.OTLPEndpoint)
	defer shutdownObs()

	client := meteo.New(meteo.Config{
		GeocodeURL:  cfg.GeocodeURL,
		ForecastURL: cfg.ForecastURL,
		Timeout:     cfg.UpstreamTimeout,
		RPS:         cfg.UpstreamRPS,
		Burst:       cfg.UpstreamBurst,
	})

	caches := httpapi.Caches{
		Suggestions: cache.New[[]meteo.Suggestion](cfg.CacheTTL, observability.NewCacheMetrics("autocomplete")),
		Geocodes:    cache.New[models.Location](cfg.CacheTTL, observability.NewCacheMetrics("geocode")),
		Forecasts:   cache.New[models.Forecast](cfg.CacheTTL, observability.NewCacheMetrics("forecast")),
	}

	sweepCtx, stopSweepers := context.WithCancel(context.Background())
	defer stopSweepers()
	if cfg.CacheSweepInterval > 0 {
		caches.Suggestions.StartSweeper(sweepCtx, cfg.CacheSweepInterval)
		caches.Geocodes.StartSweeper(sweepCtx, cfg.CacheSweepInterval)
		caches.Forecasts.StartSweeper(sweepCtx, cfg.CacheSweepInterval)
	}

	srv := httpapi.NewServer(client, caches)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(observability.Middleware(tracer, serviceName))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promHandler)

	r.Route("/api", func(r chi.Router) {
		srv.RegisterRoutes(r)
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("cosmoweather started", "port", cfg.Port, "cache_ttl", cfg.CacheTTL)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
