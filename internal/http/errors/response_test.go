package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse_Unauthorized(t *testing.T) {
	e := FromResponse(http.StatusUnauthorized, nil, nil)
	assert.Equal(t, "INVALID_CREDENTIALS", e.Code)
	assert.Equal(t, "Credenciales incorrectas.", e.Message)
	assert.Equal(t, 401, e.Status)

	e = FromResponse(http.StatusUnauthorized, map[string]any{"message": "Usuario bloqueado"}, nil)
	assert.Equal(t, "Usuario bloqueado", e.Message)
	// la variable base no se muta
	assert.Equal(t, "Credenciales incorrectas.", ErrInvalidCredentials.Message)
}

func TestFromResponse_ValidationFields(t *testing.T) {
	payload := map[string]any{
		"errors": map[string]any{
			"email":    []any{"formato inválido"},
			"password": "muy corta",
		},
	}
	e := FromResponse(http.StatusUnprocessableEntity, payload, nil)
	require.Equal(t, "VALIDATION_FAILED", e.Code)
	assert.Equal(t, 422, e.Status)
	assert.Equal(t, "email: formato inválido", e.Message)
	fields, ok := e.Details.(map[string][]string)
	require.True(t, ok)
	assert.Equal(t, []string{"muy corta"}, fields["password"])
}

func TestFromResponse_ValidationDetailList(t *testing.T) {
	payload := map[string]any{
		"detail": []any{
			map[string]any{"loc": []any{"body", "identification"}, "msg": "field required"},
		},
	}
	e := FromResponse(http.StatusBadRequest, payload, nil)
	assert.Equal(t, 400, e.Status)
	assert.Equal(t, "identification: field required", e.Message)
}

func TestFromResponse_Conflict(t *testing.T) {
	e := FromResponse(http.StatusConflict, map[string]any{
		"message": "duplicate",
		"fields":  []any{"email", "identification"},
	}, nil)
	assert.True(t, stderrors.Is(e, ErrConflict))
	assert.Contains(t, e.Message, "email, identification")
	assert.Equal(t, []string{"email", "identification"}, e.Details)

	e = FromResponse(http.StatusConflict, map[string]any{"message": "ya existe"}, nil)
	assert.Equal(t, "ya existe", e.Message)
	assert.Nil(t, e.Details)
}

func TestFromResponse_RateLimited(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	e := FromResponse(http.StatusTooManyRequests, nil, h)
	assert.Equal(t, 30*time.Second, e.RetryAfter)

	e = FromResponse(http.StatusTooManyRequests, map[string]any{"retry_after": float64(5)}, nil)
	assert.Equal(t, 5*time.Second, e.RetryAfter)
}

func TestFromResponse_ServerError(t *testing.T) {
	e := FromResponse(http.StatusBadGateway, nil, nil)
	assert.Equal(t, "SERVER_ERROR", e.Code)
	assert.Equal(t, 502, e.Status)
	assert.Equal(t, "Error del servidor, intenta más tarde.", e.Message)
}

func TestFromResponse_NestedMessage(t *testing.T) {
	e := FromResponse(http.StatusForbidden, map[string]any{"error": map[string]any{"message": "sin acceso a la finca"}}, nil)
	assert.Equal(t, "sin acceso a la finca", e.Message)
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	app := ErrServer.WithStatus(503)
	assert.Same(t, app, Normalize(fmt.Errorf("wrap: %w", app)))

	n0 := Normalize(ErrInvalidCredentials)
	assert.NotSame(t, ErrInvalidCredentials, n0)
	assert.ErrorIs(t, n0, ErrInvalidCredentials)
	n0.Message = "mutado"
	assert.Equal(t, "Credenciales incorrectas.", ErrInvalidCredentials.Message)

	assert.Equal(t, "CONNECTION_TIMEOUT", Normalize(context.DeadlineExceeded).Code)
	assert.Equal(t, "REQUEST_CANCELED", Normalize(context.Canceled).Code)

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: stderrors.New("connection refused")}
	n := Normalize(opErr)
	assert.Equal(t, "NETWORK_ERROR", n.Code)
	assert.Equal(t, 0, n.Status)
	assert.ErrorIs(t, n, opErr)

	assert.Equal(t, "UNEXPECTED", Normalize(stderrors.New("boom")).Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 401, StatusOf(fmt.Errorf("x: %w", ErrInvalidCredentials)))
	assert.Equal(t, 0, StatusOf(stderrors.New("plain")))
}
