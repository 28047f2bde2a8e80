package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dropDatabas3/farmauth/internal/role"
)

// User is the normalized profile. Raw keeps the original object as received.
type User struct {
	ID             string         `json:"id,omitempty"`
	Identification string         `json:"identification,omitempty"`
	Fullname       string         `json:"fullname,omitempty"`
	Email          string         `json:"email,omitempty"`
	Role           role.Role      `json:"role"`
	RawRole        any            `json:"raw_role,omitempty"`
	Status         string         `json:"status,omitempty"`
	Raw            map[string]any `json:"-"`
}

// ProfileResult is the response of GET /auth/me after normalization.
type ProfileResult struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
	Status  int    `json:"status,omitempty"`
	// Shared is true when the caller joined an in-flight request.
	Shared bool `json:"-"`
	// Cached is true when the result came from the profile cache.
	Cached bool `json:"-"`
}

var (
	idKeys       = []string{"id", "_id", "user_id", "userId", "uid", "sub"}
	identKeys    = []string{"identification", "identificacion", "document", "documento", "cedula", "username"}
	fullnameKeys = []string{"fullname", "full_name", "fullName", "nombre_completo", "name", "nombre"}
	emailKeys    = []string{"email", "correo", "mail"}
	roleKeys     = []string{"role", "rol", "role_id", "roleId", "rol_id", "roles"}
	statusKeys   = []string{"status", "estado", "state", "is_active", "active"}
)

// UserFromMap builds a User from a user-shaped object. It returns nil for a nil map.
func UserFromMap(m map[string]any) *User {
	if m == nil {
		return nil
	}
	u := &User{
		ID:             stringify(first(m, idKeys)),
		Identification: stringify(first(m, identKeys)),
		Fullname:       stringify(first(m, fullnameKeys)),
		Email:          stringify(first(m, emailKeys)),
		RawRole:        first(m, roleKeys),
		Status:         status(first(m, statusKeys)),
		Raw:            m,
	}
	if u.Fullname == "" {
		u.Fullname = strings.TrimSpace(stringify(first(m, []string{"first_name", "nombres"})) + " " +
			stringify(first(m, []string{"last_name", "apellidos"})))
	}
	u.Role = role.Normalize(u.RawRole)
	if u.Role == role.Unknown {
		// {roles: [...]}: take the first recognizable one
		if list, ok := u.RawRole.([]any); ok {
			for _, v := range list {
				if r := role.Normalize(v); r != role.Unknown {
					u.Role = r
					break
				}
			}
		}
	}
	return u
}

func first(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%.0f", t)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func status(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "activo"
		}
		return "inactivo"
	}
	return strings.ToLower(stringify(v))
}
