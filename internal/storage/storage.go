// Package storage persiste pares clave/valor de la sesión del cliente.
//
// Drivers:
//   - memory: in-process (go-cache), se pierde al salir
//   - file: un documento JSON reescrito de forma atómica, opcionalmente sellado
//   - redis: compartido entre procesos
//   - postgres: tabla clave/valor
//   - none: descarta escrituras (sesiones sólo por cookie)
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/farmauth/internal/observability/logger"
)

// Store es el contrato común de todos los drivers.
type Store interface {
	// Get devuelve ErrNotFound si la clave no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda value. ttl <= 0 no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete es idempotente: borrar una clave ausente no es error.
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("storage: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

type FileConfig struct {
	Path string
	Key  string // vacío = texto plano
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type PostgresConfig struct {
	DSN   string
	Table string
}

// Config selecciona y parametriza el driver.
type Config struct {
	Driver   string
	File     FileConfig
	Redis    RedisConfig
	Postgres PostgresConfig
}

// Open construye el Store pedido por cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log := logger.L().With(logger.Component("storage"), logger.Driver(driver))

	var (
		s   Store
		err error
	)
	switch driver {
	case DriverMemory, "":
		s = NewMemory()
	case DriverFile:
		s, err = NewFile(cfg.File)
	case DriverRedis:
		s, err = NewRedis(ctx, cfg.Redis)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.Postgres)
	case DriverNone:
		s = NewNone()
	default:
		return nil, fmt.Errorf("storage: driver desconocido %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", driver, err)
	}
	log.Debug("storage ready")
	return s, nil
}

// PurgeLegacy borra claves de versiones anteriores del cliente. Es best
// effort: los errores sólo se registran en debug.
func PurgeLegacy(ctx context.Context, s Store, keys []string) int {
	if s == nil {
		return 0
	}
	log := logger.From(ctx).With(logger.Component("storage"), logger.Op("purge_legacy"))
	removed := 0
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if err := s.Delete(ctx, k); err != nil {
			log.Debug("legacy key not removed", logger.Key(k), logger.Err(err))
			continue
		}
		removed++
	}
	return removed
}
