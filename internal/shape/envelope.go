package shape

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/dropDatabas3/farmauth/internal/jwt"
)

var ErrNotJSON = errors.New("shape: la respuesta no es JSON")

// Result es lo que se pudo extraer de una respuesta de /auth/*.
type Result struct {
	Token   string
	User    map[string]any
	Message string
	// Variant indica qué envelope matcheó: "flat", "data", "data.data",
	// "search" (búsqueda genérica) o "" si no se encontró nada.
	Variant string
	Payload any
}

// authFields son los campos que traen las variantes conocidas de login/refresh/me.
type authFields struct {
	AccessToken  *string         `json:"access_token"`
	Token        *string         `json:"token"`
	JWTToken     *string         `json:"jwt_token"`
	RefreshToken *string         `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
	Usuario      json.RawMessage `json:"usuario"`
}

func (f authFields) token() string {
	for _, p := range []*string{f.AccessToken, f.Token, f.JWTToken, f.RefreshToken} {
		if p == nil {
			continue
		}
		if tok, ok := jwt.Extract(*p); ok {
			return tok
		}
	}
	return ""
}

func (f authFields) user() map[string]any {
	for _, raw := range []json.RawMessage{f.User, f.Usuario} {
		if len(raw) == 0 {
			continue
		}
		var m map[string]any
		if err := decodeInto(raw, &m); err == nil && m != nil && LooksLikeUser(m) {
			return m
		}
	}
	return nil
}

type flatEnvelope struct {
	authFields
}

type dataEnvelope struct {
	Data authFields `json:"data"`
}

type dataDataEnvelope struct {
	Data struct {
		Data authFields `json:"data"`
	} `json:"data"`
}

// variant es una forma conocida de respuesta; extract devuelve ok=false si
// el JSON no tiene esa forma o no trae ni token ni usuario.
type variant struct {
	name    string
	extract func(raw []byte) (authFields, bool)
}

var variants = []variant{
	{"flat", func(raw []byte) (authFields, bool) {
		var e flatEnvelope
		return e.authFields, decodeInto(raw, &e) == nil
	}},
	{"data", func(raw []byte) (authFields, bool) {
		var e dataEnvelope
		return e.Data, decodeInto(raw, &e) == nil
	}},
	{"data.data", func(raw []byte) (authFields, bool) {
		var e dataDataEnvelope
		return e.Data.Data, decodeInto(raw, &e) == nil
	}},
}

// Decode decodifica el body conservando números como json.Number
// (ids grandes no pierden precisión). Body vacío => nil, nil.
func Decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := decodeInto(raw, &v); err != nil {
		return nil, errors.Join(ErrNotJSON, err)
	}
	return v, nil
}

// Parse extrae token, usuario y mensaje de un body crudo.
func Parse(raw []byte) (Result, error) {
	payload, err := Decode(raw)
	if err != nil {
		return Result{}, err
	}

	var r Result
	for _, v := range variants {
		f, ok := v.extract(raw)
		if !ok {
			continue
		}
		tok, user := f.token(), f.user()
		if tok == "" && user == nil {
			continue
		}
		r = Result{Token: tok, User: user, Variant: v.name}
		break
	}

	// Completar lo que la variante no trajo con la búsqueda genérica.
	if r.Token == "" {
		if tok, ok := FindToken(payload); ok {
			r.Token = tok
			if r.Variant == "" {
				r.Variant = "search"
			}
		}
	}
	if r.User == nil {
		if u, ok := FindUser(payload); ok {
			r.User = u
			if r.Variant == "" {
				r.Variant = "search"
			}
		}
	}
	r.Message = FindMessage(payload)
	r.Payload = payload
	return r, nil
}

func decodeInto(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
