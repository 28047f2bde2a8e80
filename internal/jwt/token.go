package jwt

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// MinLength es el largo mínimo de un token plausible. Los backends de desarrollo
// emiten handles opacos cortos, por eso no se exige el largo de un JWT.
const MinLength = 3

// b64token según RFC 6750 §2.1.
var b64token = regexp.MustCompile(`^[A-Za-z0-9\-._~+/]+=*$`)

// Extract normaliza un candidato a token: trim, quita el esquema "Bearer "
// (case-insensitive) y rechaza vacíos, espacios internos o largo < MinLength.
func Extract(candidate string) (string, bool) {
	s := strings.TrimSpace(candidate)
	if len(s) >= 6 && strings.EqualFold(s[:6], "bearer") {
		if len(s) == 6 {
			return "", false
		}
		if r := rune(s[6]); unicode.IsSpace(r) {
			s = strings.TrimSpace(s[6:])
		}
	}
	if s == "" || len(s) < MinLength {
		return "", false
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", false
	}
	return s, true
}

// IsJWT indica si el token tiene forma de JWS compacto (tres segmentos).
func IsJWT(tok string) bool {
	return strings.Count(tok, ".") == 2
}

// ValidFormat valida la estructura del token sin verificar firma.
// JWT: header y payload deben ser base64url de un objeto JSON; la firma puede
// venir vacía (alg "none" en entornos de prueba). Opaco: charset b64token.
func ValidFormat(tok string) bool {
	if tok == "" || strings.IndexFunc(tok, unicode.IsSpace) >= 0 {
		return false
	}
	if !IsJWT(tok) {
		return b64token.MatchString(tok)
	}
	parts := strings.Split(tok, ".")
	for _, seg := range parts[:2] {
		if !jsonObjectSegment(seg) {
			return false
		}
	}
	if sig := parts[2]; sig != "" {
		if _, err := decodeSegment(sig); err != nil {
			return false
		}
	}
	return true
}

func jsonObjectSegment(seg string) bool {
	if seg == "" {
		return false
	}
	b, err := decodeSegment(seg)
	if err != nil {
		return false
	}
	var obj map[string]any
	return json.Unmarshal(b, &obj) == nil && obj != nil
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}
