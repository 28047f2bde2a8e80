package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). dev | staging | prod
	App struct {
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	API struct {
		BaseURL      string  `yaml:"base_url"`
		Timeout      string  `yaml:"timeout"`
		Retries      int     `yaml:"retries"`        // sólo lecturas idempotentes
		RateLimitRPS float64 `yaml:"rate_limit_rps"` // 0 = sin límite
		RateBurst    int     `yaml:"rate_burst"`
		UserAgent    string  `yaml:"user_agent"`
	} `yaml:"api"`

	Auth struct {
		// BearerMode: persiste el token y lo envía como Authorization.
		// Apagado por defecto: la sesión vive en la cookie HTTP-only.
		BearerMode     bool     `yaml:"bearer_mode"`
		StorageKey     string   `yaml:"storage_key"`
		LoginPathKey   string   `yaml:"login_path_key"`
		// CookieStoreKey: clave donde el CLI guarda las cookies de sesión entre
		// ejecuciones (modo cookie HTTP-only).
		CookieStoreKey string `yaml:"cookie_store_key"`
		CSRFCookieName string   `yaml:"csrf_cookie_name"`
		LoginTimeout   string   `yaml:"login_timeout"`
		ProfileTTL     string   `yaml:"profile_ttl"`
		AutoRefresh    *bool    `yaml:"auto_refresh"`
		LegacyKeys     []string `yaml:"legacy_keys"`
	} `yaml:"auth"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | redis | file | postgres | none
		File   struct {
			Path string `yaml:"path"`
			// Key: base64(32 bytes) para sellar valores en disco. Opcional.
			Key string `yaml:"key"`
		} `yaml:"file"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN   string `yaml:"dsn"`
			Table string `yaml:"table"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
		Debug bool   `yaml:"debug"`
	} `yaml:"log"`

	Metrics struct {
		Enabled   bool   `yaml:"enabled"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// Load lee el YAML en path (si path == "" sólo defaults + env),
// aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default devuelve una configuración sólo con defaults (sin env). Útil en tests.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "15s"
	}
	if c.API.Retries == 0 {
		c.API.Retries = 2
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = 5
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "farmauth/1.0"
	}
	if c.Auth.StorageKey == "" {
		c.Auth.StorageKey = "farm_access_token"
	}
	if c.Auth.LoginPathKey == "" {
		c.Auth.LoginPathKey = "farm_login_path"
	}
	if c.Auth.CookieStoreKey == "" {
		c.Auth.CookieStoreKey = "farm_session_cookies"
	}
	if c.Auth.CSRFCookieName == "" {
		c.Auth.CSRFCookieName = "csrf_token"
	}
	if c.Auth.LoginTimeout == "" {
		c.Auth.LoginTimeout = "20s"
	}
	if c.Auth.ProfileTTL == "" {
		c.Auth.ProfileTTL = "2m"
	}
	if c.Auth.AutoRefresh == nil {
		on := true
		c.Auth.AutoRefresh = &on
	}
	if c.Auth.LegacyKeys == nil {
		c.Auth.LegacyKeys = []string{"token", "access_token", "auth_token", "user", "userData"}
	}
	// file en ambos modos: el token (bearer) o las cookies (modo cookie)
	// tienen que sobrevivir entre ejecuciones del CLI.
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.File.Path == "" {
		c.Storage.File.Path = "./data/farmauth/session.json"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "farmauth"
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "farmauth_session_kv"
	}
	if c.Log.Env == "" {
		c.Log.Env = c.App.Env
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "farmauth"
	}
}

// Validate chequea formatos y combinaciones inválidas.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url inválida: %q", c.API.BaseURL))
	}
	for name, v := range map[string]string{
		"api.timeout":        c.API.Timeout,
		"auth.login_timeout": c.Auth.LoginTimeout,
		"auth.profile_ttl":   c.Auth.ProfileTTL,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s inválido: %q", name, v))
		}
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("api.retries no puede ser negativo"))
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, errors.New("api.rate_limit_rps no puede ser negativo"))
	}
	switch c.Storage.Driver {
	case "memory", "redis", "file", "none":
	case "postgres":
		if strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
			errs = append(errs, errors.New("storage.postgres.dsn requerido con driver postgres"))
		}
		if !validIdent(c.Storage.Postgres.Table) {
			errs = append(errs, fmt.Errorf("storage.postgres.table inválida: %q", c.Storage.Postgres.Table))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver desconocido: %q", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Auth.StorageKey) == "" {
		errs = append(errs, errors.New("auth.storage_key vacío"))
	}
	return errors.Join(errs...)
}

// APITimeout, LoginTimeout y ProfileTTL devuelven las duraciones ya validadas.
func (c *Config) APITimeout() time.Duration   { return mustDur(c.API.Timeout) }
func (c *Config) LoginTimeout() time.Duration { return mustDur(c.Auth.LoginTimeout) }
func (c *Config) ProfileTTL() time.Duration   { return mustDur(c.Auth.ProfileTTL) }

// AutoRefreshEnabled resuelve el puntero (nil = habilitado).
func (c *Config) AutoRefreshEnabled() bool {
	return c.Auth.AutoRefresh == nil || *c.Auth.AutoRefresh
}

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validIdent(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// API
	if v, ok := getEnvStr("API_BASE_URL"); ok {
		c.API.BaseURL = v
	}
	if v, ok := getEnvStr("API_TIMEOUT"); ok {
		c.API.Timeout = v
	}
	if v, ok := getEnvInt("API_RETRIES"); ok {
		c.API.Retries = v
	}
	if v, ok := getEnvFloat("API_RATE_LIMIT_RPS"); ok {
		c.API.RateLimitRPS = v
	}
	if v, ok := getEnvInt("API_RATE_BURST"); ok {
		c.API.RateBurst = v
	}

	// AUTH
	if v, ok := getEnvBool("AUTH_BEARER_MODE"); ok {
		c.Auth.BearerMode = v
	}
	if v, ok := getEnvStr("AUTH_STORAGE_KEY"); ok {
		c.Auth.StorageKey = v
	}
	if v, ok := getEnvStr("AUTH_COOKIE_STORE_KEY"); ok {
		c.Auth.CookieStoreKey = v
	}
	if v, ok := getEnvStr("AUTH_CSRF_COOKIE_NAME"); ok {
		c.Auth.CSRFCookieName = v
	}
	if v, ok := getEnvStr("AUTH_LOGIN_TIMEOUT"); ok {
		c.Auth.LoginTimeout = v
	}
	if v, ok := getEnvStr("AUTH_PROFILE_TTL"); ok {
		c.Auth.ProfileTTL = v
	}
	if v, ok := getEnvBool("AUTH_AUTO_REFRESH"); ok {
		c.Auth.AutoRefresh = &v
	}
	if v, ok := getEnvCSV("AUTH_LEGACY_KEYS"); ok {
		c.Auth.LegacyKeys = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("STORAGE_FILE_PATH"); ok {
		c.Storage.File.Path = v
	}
	if v, ok := getEnvStr("STORAGE_FILE_KEY"); ok {
		c.Storage.File.Key = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Storage.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Storage.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Storage.Redis.Prefix = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Storage.Postgres.DSN = v
	}
	if v, ok := getEnvStr("POSTGRES_TABLE"); ok {
		c.Storage.Postgres.Table = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvBool("DEBUG"); ok {
		c.Log.Debug = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvStr("METRICS_NAMESPACE"); ok {
		c.Metrics.Namespace = v
	}
}
