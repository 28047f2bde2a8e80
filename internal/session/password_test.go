package session

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/testutil/fakeapi"
)

func TestRecoverAccount_EmailOrIdentification(t *testing.T) {
	h := newHarness(t)
	h.login(t, "tok-one-123")
	h.api.Respond(http.MethodPost, PathRecover, 200, map[string]any{
		"data": map[string]any{
			"message":     "Te enviamos un correo",
			"reset_token": "rst-1",
			"expires_in":  900,
			"email_hint":  "a…@f….co",
		},
	})

	res, err := h.svc.RecoverAccount(h.ctx, "ana@finca.co")
	require.NoError(t, err)
	assert.Equal(t, "Te enviamos un correo", res.Message)
	assert.Equal(t, "rst-1", res.ResetToken)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.Equal(t, "a…@f….co", res.EmailHint)
	assert.Equal(t, map[string]any{"email": "ana@finca.co"}, h.api.LastBody(http.MethodPost, PathRecover))

	req := h.api.LastRequest(http.MethodPost, PathRecover)
	assert.Empty(t, req.Header.Get("Authorization"), "recover no requiere sesión")
	assert.Equal(t, "csrf-abc", req.Header.Get("X-Csrf-Token"))

	_, err = h.svc.RecoverAccount(h.ctx, " 1098765432 ")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"identification": "1098765432"}, h.api.LastBody(http.MethodPost, PathRecover))

	_, err = h.svc.RecoverAccount(h.ctx, "  ")
	assert.ErrorIs(t, err, httperrors.ErrValidation)
}

func TestRecoverAccount_NotFound(t *testing.T) {
	h := newHarness(t)
	h.api.Respond(http.MethodPost, PathRecover, 404, map[string]any{"message": "No existe una cuenta con ese correo"})

	_, err := h.svc.RecoverAccount(h.ctx, "nadie@finca.co")
	require.Error(t, err)
	assert.ErrorIs(t, err, httperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "No existe una cuenta")
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	h.api.Respond(http.MethodPost, PathResetPassword, 200, map[string]any{"message": "Contraseña actualizada"})

	res, err := h.svc.ResetPassword(h.ctx, "rst-1", "Nueva#2026")
	require.NoError(t, err)
	assert.Equal(t, "Contraseña actualizada", res.Message)
	assert.False(t, res.ShouldClearAuth)
	assert.Equal(t, map[string]any{"reset_token": "rst-1", "new_password": "Nueva#2026"},
		h.api.LastBody(http.MethodPost, PathResetPassword))

	_, err = h.svc.ResetPassword(h.ctx, "", "x")
	assert.ErrorIs(t, err, httperrors.ErrValidation)
}

func TestResetPassword_ValidationFromBackend(t *testing.T) {
	h := newHarness(t)
	h.api.Respond(http.MethodPost, PathResetPassword, 422, map[string]any{
		"errors": map[string]any{"new_password": []any{"Debe tener al menos 8 caracteres"}},
	})

	_, err := h.svc.ResetPassword(h.ctx, "rst-1", "corta")
	require.Error(t, err)
	assert.ErrorIs(t, err, httperrors.ErrValidation)
	assert.Equal(t, 422, httperrors.StatusOf(err))
}

func TestChangePassword_ShouldClearAuth(t *testing.T) {
	h := newHarness(t)
	h.login(t, "tok-one-123")
	h.api.Respond(http.MethodPost, PathChangePassword, 200, map[string]any{
		"data": map[string]any{"message": "Vuelve a iniciar sesión", "should_clear_auth": true},
	})

	res, err := h.svc.ChangePassword(h.ctx, "vieja", "Nueva#2026")
	require.NoError(t, err)
	assert.True(t, res.ShouldClearAuth)
	assert.Equal(t, "Vuelve a iniciar sesión", res.Message)
	assert.Equal(t, Anonymous, h.svc.State())
	assert.Empty(t, h.svc.Token())
	assert.Equal(t, map[string]any{"current_password": "vieja", "new_password": "Nueva#2026"},
		h.api.LastBody(http.MethodPost, PathChangePassword))
}

func TestChangePassword_KeepsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t, "tok-one-123")
	h.api.Respond(http.MethodPost, PathChangePassword, 200, map[string]any{"message": "ok", "should_clear_auth": false})

	_, err := h.svc.ChangePassword(h.ctx, "vieja", "Nueva#2026")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, h.svc.State())
	assert.Equal(t, "tok-one-123", h.svc.Token())
}

func TestChangePassword_ClearDoesNotWipeLaterLogin(t *testing.T) {
	h := newHarness(t)
	h.login(t, "tok-old-111")

	hit := make(chan struct{})
	release := make(chan struct{})
	h.api.Handle(http.MethodPost, PathChangePassword, func(w http.ResponseWriter, r *http.Request) {
		close(hit)
		<-release
		fakeapi.JSON(w, 200, map[string]any{"message": "ok", "should_clear_auth": true})
	})

	changed := make(chan error, 1)
	go func() {
		_, err := h.svc.ChangePassword(h.ctx, "vieja", "Nueva#2026")
		changed <- err
	}()
	<-hit

	logged := make(chan error, 1)
	go func() {
		h.api.Respond(http.MethodPost, PathLogin, 200, map[string]any{"access_token": "tok-new-222", "user": map[string]any{"id": 9}})
		_, err := h.svc.Login(h.ctx, "1010", "Nueva#2026")
		logged <- err
	}()

	// el login queda esperando a que termine el cambio de contraseña
	select {
	case <-logged:
		t.Fatal("login finished while change-password was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-changed)
	require.NoError(t, <-logged)
	assert.Equal(t, "tok-new-222", h.svc.Token())
	assert.Equal(t, Authenticated, h.svc.State())
}
