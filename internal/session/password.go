package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/jwt"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/shape"
	"github.com/dropDatabas3/farmauth/internal/util"
)

// RecoverAccount pide el correo de recuperación. Un identificador con "@" se
// envía como email, cualquier otro como identificación.
func (s *Service) RecoverAccount(ctx context.Context, identifier string) (*dto.RecoverResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, httperrors.ErrValidation.WithMessage("Ingresa tu correo o identificación.")
	}
	body := dto.RecoverRequest{Identification: identifier}
	if strings.Contains(identifier, "@") {
		body = dto.RecoverRequest{Email: identifier}
	}

	log := logger.From(ctx).With(logger.Component("session"), logger.Op("recover"),
		logger.String("identifier", util.Mask(identifier)))

	data, err := s.passThrough(ctx, PathRecover, body)
	if err != nil {
		log.Info("recover failed", logger.Err(err))
		return nil, err
	}
	res := &dto.RecoverResult{
		Message:    message(data),
		ResetToken: jwt.Stringify(data.inner["reset_token"]),
		ExpiresIn:  int64Of(data.inner["expires_in"]),
		EmailHint:  jwt.Stringify(data.inner["email_hint"]),
	}
	log.Info("recover requested")
	return res, nil
}

// ResetPassword fija una contraseña nueva con el token de recuperación.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (*dto.PasswordResult, error) {
	if strings.TrimSpace(resetToken) == "" || newPassword == "" {
		return nil, httperrors.ErrValidation.WithMessage("El token y la nueva contraseña son obligatorios.")
	}
	return s.passwordOp(ctx, "reset_password", PathResetPassword,
		dto.ResetPasswordRequest{ResetToken: strings.TrimSpace(resetToken), NewPassword: newPassword})
}

// ChangePassword cambia la contraseña conociendo la actual.
func (s *Service) ChangePassword(ctx context.Context, current, next string) (*dto.PasswordResult, error) {
	if current == "" || next == "" {
		return nil, httperrors.ErrValidation.WithMessage("La contraseña actual y la nueva son obligatorias.")
	}
	return s.passwordOp(ctx, "change_password", PathChangePassword,
		dto.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
}

// passwordOp toma authMu: un should_clear_auth sólo puede limpiar la sesión
// que existía al hacer la llamada, nunca la de un login posterior.
func (s *Service) passwordOp(ctx context.Context, op, path string, body any) (*dto.PasswordResult, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	log := logger.From(ctx).With(logger.Component("session"), logger.Op(op))

	data, err := s.passThrough(ctx, path, body)
	if err != nil {
		log.Info("password operation failed", logger.Err(err))
		return nil, err
	}
	res := &dto.PasswordResult{
		Message:         message(data),
		ShouldClearAuth: truthy(data.inner["should_clear_auth"]),
	}
	if res.ShouldClearAuth {
		s.clearSession(ctx, op)
	}
	log.Info("password operation ok", logger.Bool("cleared", res.ShouldClearAuth))
	return res, nil
}

type unwrapped struct {
	root  any
	inner map[string]any
}

// passThrough hace un POST sin auth y desenvuelve un nivel (data o raíz).
func (s *Service) passThrough(ctx context.Context, path string, body any) (unwrapped, error) {
	resp, err := s.api.Do(ctx, client.Request{Method: http.MethodPost, Path: path, Body: body, SkipAuth: true})
	if err != nil {
		return unwrapped{}, httperrors.Normalize(err)
	}
	return unwrapped{root: resp.Payload, inner: shape.Unwrap(resp.Payload)}, nil
}

func message(u unwrapped) string {
	if m := shape.FindMessage(u.inner); m != "" {
		return m
	}
	return shape.FindMessage(u.root)
}

func int64Of(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		n, _ := t.Int64()
		return n
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		return t.String() == "1"
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "si", "sí":
			return true
		}
	}
	return false
}
