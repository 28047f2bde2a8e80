package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el X-Request-ID enviado al backend.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Endpoint crea un campo para el path relativo a la API (ej. /auth/me).
func Endpoint(v string) zap.Field {
	return zap.String("endpoint", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Attempt crea un campo para el número de intento (reintentos de lecturas).
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Duration crea un campo para la duración de una llamada.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SESIÓN
// =================================================================================

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// Role crea un campo para el rol canónico.
func Role(v string) zap.Field {
	return zap.String("role", v)
}

// State crea un campo para el estado del ciclo de vida de la sesión.
func State(v string) zap.Field {
	return zap.String("state", v)
}

// Variant crea un campo para la variante de envelope que matcheó una respuesta.
func Variant(v string) zap.Field {
	return zap.String("variant", v)
}

// Shared indica si el resultado vino de un request en vuelo compartido.
func Shared(v bool) zap.Field {
	return zap.Bool("shared", v)
}

// TokenHint deja rastro de un token sin exponerlo: los últimos 4 caracteres,
// o sólo el largo si el token es corto.
func TokenHint(tok string) zap.Field {
	if len(tok) <= 8 {
		return zap.Int("token_len", len(tok))
	}
	return zap.String("token_hint", "…"+tok[len(tok)-4:])
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (service, transport, storage).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Driver crea un campo para el driver de storage.
func Driver(v string) zap.Field {
	return zap.String("driver", v)
}

// Key crea un campo para una clave de storage.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
