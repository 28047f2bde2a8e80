package session

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/shape"
)

// Logout avisa al backend y después limpia todo el estado local (token,
// claves legacy, login path, caché y flight) pase lo que pase con la llamada.
// Si la llamada falló el error normalizado igual se devuelve.
func (s *Service) Logout(ctx context.Context) (*dto.LogoutResult, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	log := logger.From(ctx).With(logger.Component("session"), logger.Op("logout"))

	resp, err := s.api.Do(ctx, client.Request{Method: http.MethodPost, Path: PathLogout, NoRefresh: true})

	extra := append([]string{s.opts.LoginPathKey}, s.opts.LegacyKeys...)
	s.clearSession(ctx, "logout", extra...)

	if err != nil {
		appErr := httperrors.Normalize(err)
		log.Info("logout call failed, local session cleared", logger.Status(appErr.Status), logger.Err(appErr))
		return &dto.LogoutResult{Remote: false}, appErr
	}
	log.Info("logout ok")
	return &dto.LogoutResult{Message: shape.FindMessage(resp.Payload), Remote: true}, nil
}
