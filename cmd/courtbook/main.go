package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/bookingapi"
	"courtbook/internal/club"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/events"
	"courtbook/internal/history"
	"courtbook/internal/metrics"
	"courtbook/internal/session"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil && cfg.App.LogLevel != "" {
		logger = logger.Level(level)
	}

	var db *database.DB
	if cfg.Auth.TokenStore == "sqlite" {
		db, err = database.NewDB(cfg.Database.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db error")
		}
		defer db.Close()
	}

	client := bookingapi.NewClient(cfg.API.BaseURL, cfg.APITimeout(), &logger)
	client.UseRateLimit(cfg.API.RateLimit, cfg.API.RateBurst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if cfg.UsersCacheTTL() > 0 {
			client.UseRedisCache(rdb, cfg.UsersCacheTTL())
		}
	}

	tokens := tokenStore(cfg, db, rdb)
	creds := bookingapi.Credentials{Email: cfg.Auth.Email, Password: cfg.Auth.Password}
	c := club.New(client, creds, tokens, club.Options{
		ReconcileInterval: cfg.ReconcileInterval(),
		PageSize:          cfg.History.PageSize,
		Windows:           windowsOf(cfg.History.Windows),
	}, &logger)

	c.Events().Subscribe(events.StoreReloaded, func(e events.Event) error {
		logger.Debug().Int("reservations", e.Count).Msg("store reloaded")
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if err := c.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("club init failed")
	}

	// Hot reload of contended windows
	if err := config.Watch(ctx, configPath, 30*time.Second, &logger, func(updated *config.Config) {
		c.SetContendedWindows(windowsOf(updated.History.Windows))
	}); err != nil {
		logger.Error().Err(err).Msg("config watch failed")
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, c, client, db, rdb, &logger)

	logger.Info().Str("api", cfg.API.BaseURL).Msg("courtbook agent started")
	runRefreshLoop(ctx, c, cfg.SessionRefreshInterval(), &logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// keep the stored token so the next start can reuse it
	if err := c.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
	logger.Info().Msg("courtbook agent stopped")
}

func tokenStore(cfg *config.Config, db *database.DB, rdb *redis.Client) session.TokenStore {
	switch cfg.Auth.TokenStore {
	case "redis":
		return session.NewRedisTokenStore(rdb, cfg.Redis.KeyPrefix)
	case "memory":
		return session.NewMemoryTokenStore("")
	default:
		return database.NewTokenStore(db)
	}
}

func windowsOf(cfgWindows []config.Window) []history.Window {
	out := make([]history.Window, 0, len(cfgWindows))
	for _, w := range cfgWindows {
		out = append(out, history.Window{Days: w.Weekdays(), FromHour: w.FromHour, ToHour: w.ToHour})
	}
	return out
}

func runRefreshLoop(ctx context.Context, c *club.Context, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logger.Error().Err(err).Msg("session refresh failed")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, c *club.Context, client *bookingapi.Client, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if c.Session() != session.StateValid {
			http.Error(w, "session not valid", http.StatusServiceUnavailable)
			return
		}
		if db != nil {
			if err := db.PingContext(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "booking service not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
