package shape

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dropDatabas3/farmauth/internal/jwt"
)

// MaxDepth es la cantidad de niveles anidados bajo la raíz que se inspeccionan.
const MaxDepth = 6

// Nombres de clave (normalizados con NormKey) en orden de prioridad.
var tokenKeys = []string{"accesstoken", "token", "jwttoken", "jwt", "refreshtoken"}

var envelopeKeys = []string{"data", "payload", "result", "attributes", "meta", "response"}

// Claves que nunca contienen el token.
var tokenSkipKeys = set("message", "mensaje", "status", "error", "errors", "code")

var userHintKeys = []string{"user", "usuario", "data", "profile", "perfil", "account", "me", "payload", "result"}

// Claves de control que nunca contienen al usuario.
var userSkipKeys = set("message", "mensaje", "status", "error", "errors", "code", "success",
	"token", "accesstoken", "refreshtoken", "jwttoken")

var identityKeys = set("id", "identification", "identificacion", "fullname", "name", "nombre", "email", "correo", "role", "rol")

var statusKeys = set("status", "estado", "active", "isactive")

// NormKey pasa a minúsculas y elimina todo lo que no sea letra o dígito:
// "Access-Token", "access_token" y "accessToken" => "accesstoken".
func NormKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindToken busca un token plausible en el payload. Ver doc del paquete.
func FindToken(payload any) (string, bool) {
	return findToken(payload, 0)
}

func findToken(v any, depth int) (string, bool) {
	if depth > MaxDepth {
		return "", false
	}
	switch t := v.(type) {
	case map[string]any:
		keys := sortedKeys(t)

		// 1. coincidencia directa, por prioridad de nombre
		for _, name := range tokenKeys {
			for _, k := range keys {
				if NormKey(k) != name {
					continue
				}
				if s, ok := t[k].(string); ok {
					if tok, ok := jwt.Extract(s); ok {
						return tok, true
					}
					continue
				}
				if tok, ok := findToken(t[k], depth+1); ok {
					return tok, true
				}
			}
		}

		// 2. envelopes comunes, en orden fijo
		visited := map[string]bool{}
		for _, env := range envelopeKeys {
			for _, k := range keys {
				if NormKey(k) != env {
					continue
				}
				visited[k] = true
				if tok, ok := findToken(t[k], depth+1); ok {
					return tok, true
				}
			}
		}

		// 3. el resto de las claves
		for _, k := range keys {
			nk := NormKey(k)
			if visited[k] || tokenSkipKeys[nk] || contains(tokenKeys, nk) {
				continue
			}
			if tok, ok := findToken(t[k], depth+1); ok {
				return tok, true
			}
		}

	case []any:
		for _, el := range t {
			if tok, ok := findToken(el, depth+1); ok {
				return tok, true
			}
		}
	}
	return "", false
}

// LooksLikeUser: el objeto tiene alguna clave de identidad
// (id, identification, fullname, name, email, role), o id + una de estado.
func LooksLikeUser(m map[string]any) bool {
	hasID := false
	hasStatus := false
	for k, v := range m {
		if v == nil {
			continue
		}
		nk := NormKey(k)
		if nk == "id" {
			hasID = true
		}
		if statusKeys[nk] {
			hasStatus = true
		}
		if identityKeys[nk] {
			return true
		}
	}
	return hasID && hasStatus
}

// FindUser busca un objeto con forma de usuario. Ver doc del paquete.
func FindUser(payload any) (map[string]any, bool) {
	return findUser(payload, 0)
}

func findUser(v any, depth int) (map[string]any, bool) {
	if depth > MaxDepth {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		keys := sortedKeys(t)

		// 1. contenedores con nombre de usuario, depth-first
		visited := map[string]bool{}
		for _, hint := range userHintKeys {
			for _, k := range keys {
				if NormKey(k) != hint {
					continue
				}
				visited[k] = true
				if u, ok := findUser(t[k], depth+1); ok {
					return u, true
				}
			}
		}

		// 2. el objeto mismo
		if LooksLikeUser(t) {
			return t, true
		}

		// 3. el resto
		for _, k := range keys {
			if visited[k] || userSkipKeys[NormKey(k)] {
				continue
			}
			if u, ok := findUser(t[k], depth+1); ok {
				return u, true
			}
		}

	case []any:
		for _, el := range t {
			if u, ok := findUser(el, depth+1); ok {
				return u, true
			}
		}
	}
	return nil, false
}

var messageKeys = []string{"message", "mensaje", "detail", "msg"}

// FindMessage devuelve el mensaje del backend en la raíz o un envelope más abajo.
func FindMessage(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range messageKeys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	for _, env := range envelopeKeys {
		if inner, ok := m[env].(map[string]any); ok {
			for _, k := range messageKeys {
				if s, ok := inner[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

// Unwrap desenvuelve un nivel: payload.data si es objeto, si no la raíz.
func Unwrap(payload any) map[string]any {
	m, ok := payload.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if inner, ok := m["data"].(map[string]any); ok {
		return inner
	}
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
