package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FromResponse traduce una respuesta HTTP no-2xx a la taxonomía.
// payload es el JSON ya decodificado (puede ser nil si el body no era JSON).
func FromResponse(status int, payload any, header http.Header) *AppError {
	msg := backendMessage(payload)

	switch {
	case status == http.StatusUnauthorized:
		return ErrInvalidCredentials.WithMessage(msg)

	case status == http.StatusForbidden:
		return ErrForbidden.WithMessage(msg)

	case status == http.StatusNotFound:
		return ErrNotFound.WithMessage(msg)

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fields := fieldErrors(payload)
		if msg == "" {
			msg = firstFieldMessage(fields)
		}
		e := ErrValidation.WithStatus(status).WithMessage(msg)
		if len(fields) > 0 {
			e = e.WithDetails(fields)
		}
		return e

	case status == http.StatusConflict:
		fields := conflictFields(payload)
		if len(fields) > 0 {
			return ErrConflict.
				WithMessage("Ya existe un registro con el mismo valor en: " + strings.Join(fields, ", ")).
				WithDetails(fields)
		}
		return ErrConflict.WithMessage(msg)

	case status == http.StatusTooManyRequests:
		e := ErrRateLimited.WithMessage(msg)
		if d := retryAfter(header, payload); d > 0 {
			e.RetryAfter = d
			e.Details = map[string]any{"retry_after_seconds": int(d / time.Second)}
		}
		return e

	case status >= 500:
		return ErrServer.WithStatus(status).WithMessage(msg)

	default:
		if msg == "" {
			msg = fmt.Sprintf("La solicitud falló (HTTP %d).", status)
		}
		return &AppError{Code: "HTTP_" + strconv.Itoa(status), Message: msg, Status: status}
	}
}

// Normalize convierte cualquier error en *AppError.
// Errores ya normalizados pasan sin cambios, salvo los predefinidos, que se
// devuelven copiados.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	var app *AppError
	if stderrors.As(err, &app) {
		if predefined[app] {
			return app.Clone()
		}
		return app
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.WithCause(err)
	case stderrors.Is(err, context.Canceled):
		return ErrCanceled.WithCause(err)
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) {
		if nerr.Timeout() {
			return ErrTimeout.WithCause(err)
		}
		return ErrNetwork.WithCause(err)
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return ErrNetwork.WithCause(err)
	}
	return ErrUnexpected.WithCause(err)
}

// StatusOf devuelve el status HTTP de un error normalizado (0 si no hubo respuesta).
func StatusOf(err error) int {
	var app *AppError
	if stderrors.As(err, &app) {
		return app.Status
	}
	return 0
}

// ---- helpers de payload ----

var messageKeys = []string{"message", "mensaje", "error_description", "detail", "msg", "error"}

func backendMessage(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		if s, ok := payload.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}
	for _, k := range messageKeys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			// {"error": {"message": "..."}}
			if s := backendMessage(v); s != "" {
				return s
			}
		}
	}
	if inner, ok := m["data"].(map[string]any); ok {
		for _, k := range messageKeys[:3] {
			if s, ok := inner[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// fieldErrors soporta:
//
//	{"errors": {"email": ["requerido"]}}
//	{"errors": {"email": "requerido"}}
//	{"errors": [{"field": "email", "message": "requerido"}]}
//	{"detail": [{"loc": ["body", "email"], "msg": "field required"}]}
func fieldErrors(payload any) map[string][]string {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	out := map[string][]string{}
	for _, key := range []string{"errors", "detail", "fields"} {
		switch v := m[key].(type) {
		case map[string]any:
			for field, raw := range v {
				switch msgs := raw.(type) {
				case string:
					out[field] = append(out[field], msgs)
				case []any:
					for _, x := range msgs {
						if s, ok := x.(string); ok {
							out[field] = append(out[field], s)
						}
					}
				}
			}
		case []any:
			for _, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				field := fieldName(obj)
				msg := firstString(obj, "message", "msg", "error")
				if field != "" && msg != "" {
					out[field] = append(out[field], msg)
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fieldName(obj map[string]any) string {
	if s := firstString(obj, "field", "path", "param"); s != "" {
		return s
	}
	// loc: ["body", "email"] => email
	if loc, ok := obj["loc"].([]any); ok && len(loc) > 0 {
		if s, ok := loc[len(loc)-1].(string); ok {
			return s
		}
	}
	return ""
}

func firstFieldMessage(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(fields[k]) > 0 {
			return k + ": " + fields[k][0]
		}
	}
	return ""
}

func conflictFields(payload any) []string {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if s, ok := m["field"].(string); ok {
		add(s)
	}
	for _, key := range []string{"fields", "conflicts", "conflict_fields"} {
		switch v := m[key].(type) {
		case []any:
			for _, x := range v {
				switch t := x.(type) {
				case string:
					add(t)
				case map[string]any:
					add(fieldName(t))
				}
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(k)
			}
		}
	}
	return out
}

func retryAfter(h http.Header, payload any) time.Duration {
	if h != nil {
		if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
			if t, err := http.ParseTime(v); err == nil {
				if d := time.Until(t); d > 0 {
					return d.Round(time.Second)
				}
			}
		}
	}
	if m, ok := payload.(map[string]any); ok {
		for _, k := range []string{"retry_after", "retryAfter"} {
			switch v := m[k].(type) {
			case float64:
				if v > 0 {
					return time.Duration(v * float64(time.Second))
				}
			case json.Number:
				if f, err := v.Float64(); err == nil && f > 0 {
					return time.Duration(f * float64(time.Second))
				}
			case string:
				if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
					return time.Duration(secs) * time.Second
				}
			}
		}
	}
	return 0
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
