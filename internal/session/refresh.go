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

// RefreshToken renueva la sesión. La rotación por cookie se acepta sin
// exigir token en la respuesta; si viene uno se valida y persiste. Una falla
// limpia la sesión y propaga el error normalizado (un 401 conserva su status).
func (s *Service) RefreshToken(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.refresh(ctx)
}

// RefreshAfterUnauthorized es el hook del transporte ante un 401. Si el token
// rechazado ya fue reemplazado (otro refresh o un login lo rotaron) no vuelve
// a renovar y deja que el request se reintente con el token nuevo.
func (s *Service) RefreshAfterUnauthorized(ctx context.Context, rejected string) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.mu.Lock()
	current, st := s.token, s.state
	s.mu.Unlock()

	if st == Anonymous {
		return httperrors.ErrInvalidCredentials.Clone()
	}
	if current != rejected {
		return nil
	}
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("session"), logger.Op("refresh"))
	s.setState(Refreshing)

	resp, err := s.api.Do(ctx, client.Request{Method: http.MethodPost, Path: PathRefresh, NoRefresh: true})
	if err != nil {
		appErr := httperrors.Normalize(err)
		s.clearSession(ctx, "refresh_failed")
		log.Info("refresh failed", logger.Status(appErr.Status), logger.Err(appErr))
		return appErr
	}

	// body vacío o no-JSON: la cookie ya rotó
	r, _ := shape.Parse(resp.Raw)
	if r.Token != "" {
		claims, err := s.checkToken(r.Token)
		if err != nil {
			s.clearSession(ctx, "refresh_invalid_token")
			log.Info("refresh returned unusable token", logger.Err(err))
			return err
		}
		s.acceptToken(ctx, r.Token, claims)
	}

	s.mu.Lock()
	if u := dto.UserFromMap(r.User); u != nil {
		s.cache = &profileEntry{at: s.now(), result: &dto.ProfileResult{Message: r.Message, User: u, Status: resp.Status}}
	}
	s.state = Authenticated
	s.mu.Unlock()
	s.metrics.SetState(string(Authenticated), allStates)

	if r.Token != "" {
		log.Debug("refresh ok", logger.TokenHint(r.Token))
	} else {
		log.Debug("refresh ok (cookie rotation)")
	}
	return nil
}
