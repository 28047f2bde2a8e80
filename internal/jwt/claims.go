package jwt

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway tolera desfasaje de reloj al chequear exp.
const DefaultLeeway = 30 * time.Second

var (
	ErrNotJWT    = errors.New("jwt: token opaco, sin claims")
	ErrMalformed = errors.New("jwt: claims ilegibles")
)

// Claims es la metadata que el cliente puede leer del token.
// La firma NO se verifica: el cliente no tiene las claves del backend y sólo
// usa esto para expiración y para derivar un usuario mínimo.
type Claims struct {
	Subject   string
	Role      any // puede venir numérico (1/2/3) o string
	Email     string
	Name      string
	ExpiresAt time.Time // zero = sin exp
	IssuedAt  time.Time
	Raw       map[string]any
}

// Decode lee las claims de un JWT sin verificar la firma.
func Decode(tok string) (*Claims, error) {
	if !IsJWT(tok) {
		return nil, ErrNotJWT
	}
	p := jwtv5.NewParser(jwtv5.WithJSONNumber(), jwtv5.WithoutClaimsValidation())
	mc := jwtv5.MapClaims{}
	if _, _, err := p.ParseUnverified(tok, mc); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}

	c := &Claims{Raw: make(map[string]any, len(mc))}
	for k, v := range mc {
		c.Raw[k] = v
	}
	c.Subject = firstScalar(mc, "sub", "user_id", "uid", "id")
	c.Email = firstScalar(mc, "email")
	c.Name = firstScalar(mc, "fullname", "name")
	for _, k := range []string{"role", "rol", "role_id"} {
		if v, ok := mc[k]; ok && v != nil {
			c.Role = v
			break
		}
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	} else if err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

// Expired indica si exp quedó atrás de now, con tolerancia leeway.
// Sin exp nunca expira.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Before(now.Add(-leeway))
}

func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := Stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// Stringify convierte ids escalares (string, json.Number, float64, int) a string.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
