package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dropDatabas3/farmauth/internal/config"
	"github.com/dropDatabas3/farmauth/internal/http/client"
	"github.com/dropDatabas3/farmauth/internal/metrics"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/session"
	"github.com/dropDatabas3/farmauth/internal/storage"
)

// app agrupa las dependencias que arma PersistentPreRunE.
type app struct {
	configPath  string
	envFile     string
	out         string // "json" | "text"
	metricsFile string

	cfg   *config.Config
	reg   *prometheus.Registry
	store storage.Store
	http  *client.Client
	svc   *session.Service

	// dropCookies: la sesión se cerró, no se guardan cookies al salir.
	dropCookies bool

	stdout io.Writer
}

func newApp() *app {
	return &app{
		configPath: envOr("FARMAUTH_CONFIG", ""),
		envFile:    envOr("FARMAUTH_ENV_FILE", ".env"),
		out:        envOr("FARMAUTH_OUT", "text"),
		stdout:     os.Stdout,
	}
}

func (a *app) loadEnv() {
	if a.envFile == "" {
		return
	}
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.S().Warnf("no se pudo cargar %s: %v", a.envFile, err)
	}
}

// setup carga config, logger, métricas, storage, cliente HTTP y sesión.
func (a *app) setup(ctx context.Context) error {
	if a.out != "json" && a.out != "text" {
		return fmt.Errorf("--out inválido: %q (json|text)", a.out)
	}
	a.loadEnv()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	logger.Init(logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		Debug:       cfg.Log.Debug,
		ServiceName: "farmauth",
	})
	log := logger.Named("cli")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled || a.metricsFile != "" {
		a.reg = prometheus.NewRegistry()
		m, err = metrics.New(a.reg, cfg.Metrics.Namespace)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	store, err := storage.Open(ctx, storageConfig(cfg))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.store = store

	if n := storage.PurgeLegacy(ctx, store, cfg.Auth.LegacyKeys); n > 0 {
		log.Debug("legacy keys purged", logger.Int("count", n))
	}

	hc, err := client.New(client.Options{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.APITimeout(),
		Retries:        cfg.API.Retries,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateBurst:      cfg.API.RateBurst,
		UserAgent:      cfg.API.UserAgent,
		CSRFCookieName: cfg.Auth.CSRFCookieName,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	a.http = hc
	if n := loadCookies(ctx, store, cfg.Auth.CookieStoreKey, hc); n > 0 {
		log.Debug("session cookies loaded", logger.Int("count", n))
	}

	a.svc = session.New(session.Deps{API: hc, Store: store, Metrics: m}, session.Options{
		BearerMode:   cfg.Auth.BearerMode,
		StorageKey:   cfg.Auth.StorageKey,
		LoginPathKey: cfg.Auth.LoginPathKey,
		LegacyKeys:   cfg.Auth.LegacyKeys,
		LoginTimeout: cfg.LoginTimeout(),
		ProfileTTL:   cfg.ProfileTTL(),
		AutoRefresh:  cfg.AutoRefreshEnabled(),
	})

	restored, err := a.svc.Restore(ctx)
	if err != nil {
		log.Warn("restore failed", logger.Err(err))
	}
	log.Debug("session ready",
		logger.Driver(cfg.Storage.Driver),
		logger.Bool("bearer_mode", cfg.Auth.BearerMode),
		logger.Bool("restored", restored),
	)
	return nil
}

func (a *app) teardown() {
	if a.metricsFile != "" && a.reg != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.reg); err != nil {
			logger.L().Warn("metrics file", zap.String("path", a.metricsFile), logger.Err(err))
		}
	}
	if a.store != nil && a.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		key := a.cfg.Auth.CookieStoreKey
		var err error
		if a.dropCookies {
			err = a.store.Delete(ctx, key)
		} else {
			err = saveCookies(ctx, a.store, key, a.http)
		}
		cancel()
		if err != nil {
			logger.L().Warn("session cookies not saved", logger.Key(key), logger.Err(err))
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = logger.Sync()
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver: cfg.Storage.Driver,
		File: storage.FileConfig{
			Path: cfg.Storage.File.Path,
			Key:  cfg.Storage.File.Key,
		},
		Redis: storage.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		},
		Postgres: storage.PostgresConfig{
			DSN:   cfg.Storage.Postgres.DSN,
			Table: cfg.Storage.Postgres.Table,
		},
	}
}

// print escribe v como JSON indentado (--out json) o con el formateador text.
func (a *app) print(v any, text func(w io.Writer)) {
	if a.out == "json" || text == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(a.stdout, string(p))
		return
	}
	text(a.stdout)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
