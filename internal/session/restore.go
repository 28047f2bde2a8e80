package session

import (
	"context"
	"strings"

	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/storage"
)

// Restore recarga el bearer persistido (sólo en modo bearer). Un token
// vencido o malformado se descarta del storage. Devuelve true si quedó una
// sesión activa.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	if !s.opts.BearerMode {
		return false, nil
	}
	s.authMu.Lock()
	defer s.authMu.Unlock()

	log := logger.From(ctx).With(logger.Component("session"), logger.Op("restore"))

	tok, err := s.store.Get(ctx, s.opts.StorageKey)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		log.Warn("persisted token unreadable", logger.Err(err))
		return false, err
	}

	claims, err := s.checkToken(strings.TrimSpace(tok))
	if err != nil {
		log.Info("persisted token discarded", logger.Err(err))
		s.clearSession(ctx, "restore_discarded")
		return false, nil
	}

	s.mu.Lock()
	s.token = strings.TrimSpace(tok)
	s.claims = claims
	s.gen++
	s.state = Authenticated
	s.mu.Unlock()
	s.metrics.SetState(string(Authenticated), allStates)

	log.Debug("session restored", logger.TokenHint(tok))
	return true, nil
}

// SetLoginPath guarda la ruta a la que volver tras el próximo login.
func (s *Service) SetLoginPath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return s.store.Delete(ctx, s.opts.LoginPathKey)
	}
	return s.store.Set(ctx, s.opts.LoginPathKey, path, 0)
}

// LoginPath devuelve la ruta guardada ("" si no hay).
func (s *Service) LoginPath(ctx context.Context) (string, error) {
	p, err := s.store.Get(ctx, s.opts.LoginPathKey)
	if storage.IsNotFound(err) {
		return "", nil
	}
	return p, err
}
