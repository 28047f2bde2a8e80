// Package role normaliza las representaciones de rol del backend
// (códigos numéricos, strings con tildes, sinónimos en español e inglés)
// a uno de los roles canónicos.
package role

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Role es un rol canónico. El valor string es el que muestra la UI.
type Role string

const (
	Administrador Role = "Administrador"
	Instructor    Role = "Instructor"
	Aprendiz      Role = "Aprendiz"

	// Unknown señala una entrada no reconocida. Nunca se devuelve "".
	Unknown Role = "Desconocido"
)

var ErrUnrecognized = errors.New("role: rol no reconocido")

// All lista los roles canónicos en orden de privilegio.
var All = []Role{Administrador, Instructor, Aprendiz}

// Known indica si r es uno de los roles canónicos.
func (r Role) Known() bool {
	switch r {
	case Administrador, Instructor, Aprendiz:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

var byCode = map[int64]Role{
	1: Administrador,
	2: Instructor,
	3: Aprendiz,
}

// Los tres conjuntos son disjuntos: el orden de chequeo no altera el resultado.
var aliases = map[Role][]string{
	Administrador: {
		"1", "administrador", "administradora", "administrator", "admin", "adm",
		"superadmin", "superusuario", "superuser", "root", "coordinador", "coordinadora",
	},
	Instructor: {
		"2", "instructor", "instructora", "instructores", "teacher", "trainer",
		"profesor", "profesora", "docente", "tutor", "tutora",
	},
	Aprendiz: {
		"3", "aprendiz", "aprendices", "apprentice", "student", "estudiante",
		"alumno", "alumna", "trainee", "learner",
	},
}

var lookup = func() map[string]Role {
	m := make(map[string]Role)
	for r, list := range aliases {
		for _, a := range list {
			m[a] = r
		}
	}
	return m
}()

// Normalize resuelve v a un rol canónico o Unknown. Es pura y total.
//
// Acepta enteros, floats enteros, json.Number, strings y objetos rol del
// backend ({"id": 2}, {"name": "Instructor"}, {"nombre": "..."}).
func Normalize(v any) Role {
	switch t := v.(type) {
	case nil:
		return Unknown
	case Role:
		if t.Known() {
			return t
		}
		return Normalize(string(t))
	case int:
		return fromCode(int64(t))
	case int32:
		return fromCode(int64(t))
	case int64:
		return fromCode(t)
	case float64:
		if t != math.Trunc(t) {
			return Unknown
		}
		return fromCode(int64(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return fromCode(i)
		}
		return Normalize(t.String())
	case string:
		if r, ok := lookup[Clean(t)]; ok {
			return r
		}
		return Unknown
	case map[string]any:
		for _, k := range []string{"name", "nombre", "role", "rol", "id", "code"} {
			if r := Normalize(t[k]); r.Known() {
				return r
			}
		}
		return Unknown
	}
	return Unknown
}

// Parse es Normalize con error explícito para la entrada no reconocida.
func Parse(v any) (Role, error) {
	r := Normalize(v)
	if !r.Known() {
		return Unknown, ErrUnrecognized
	}
	return r, nil
}

func fromCode(c int64) Role {
	if r, ok := byCode[c]; ok {
		return r
	}
	return Unknown
}

// Clean quita diacríticos, pasa a minúsculas y elimina separadores,
// puntuación y espacios: "Administradór " y "ADMIN-ISTRADOR" => "administrador".
func Clean(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	var b strings.Builder
	b.Grow(len(out))
	for _, r := range strings.ToLower(out) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
