package session

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/metrics"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/shape"
)

// ProfileOptions modifica GetUserProfile.
type ProfileOptions struct {
	// Force ignora un caché fresco. Igual se une a un request en vuelo.
	Force bool
}

// profileFlight es el request de /auth/me en curso. Se reclama bajo s.mu y
// se ejecuta vía singleflight con una key única por flight, así un flight
// abortado nunca se mezcla con el siguiente.
type profileFlight struct {
	key     string
	gen     uint64
	waiters int
	cancel  context.CancelFunc
}

// abortFlightLocked cancela el flight actual. Requiere s.mu.
func (s *Service) abortFlightLocked() {
	fl := s.flight
	if fl == nil {
		return
	}
	s.flight = nil
	fl.cancel()
	s.sf.Forget(fl.key)
}

// GetUserProfile devuelve el perfil del usuario actual.
//
// Orden: caché fresco (TTL) → unirse al request en vuelo → un único request
// nuevo. Todos los que esperan un mismo flight reciben el mismo resultado o
// el mismo error. Si ctx se cancela el llamador se desprende; cuando se va el
// último, el request se aborta y el marcador se limpia para que el próximo
// llamado reintente. Un error nunca desaloja el caché.
func (s *Service) GetUserProfile(ctx context.Context, opts ProfileOptions) (*dto.ProfileResult, error) {
	log := logger.From(ctx).With(logger.Component("session"), logger.Op("profile"))

	s.mu.Lock()
	if !opts.Force && s.cache != nil && s.now().Sub(s.cache.at) < s.opts.ProfileTTL {
		res := *s.cache.result
		s.mu.Unlock()
		res.Cached = true
		s.metrics.ProfileCache(metrics.CacheHit)
		return &res, nil
	}

	fl := s.flight
	shared := fl != nil
	if fl == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.flightSeq++
		fl = &profileFlight{
			key:    "me:" + strconv.FormatUint(s.flightSeq, 10),
			gen:    s.gen,
			cancel: cancel,
		}
		s.flight = fl
		fctx = logger.ToContext(fctx, log)
		// DoChan bajo s.mu: la función no puede terminar (necesita s.mu) antes
		// de que todos los que reclamaron el flight se unan.
		ch := s.sf.DoChan(fl.key, func() (any, error) { return s.runFlight(fctx, fl) })
		fl.waiters++
		s.mu.Unlock()
		s.metrics.ProfileCache(cacheResult(opts))
		return s.await(ctx, fl, ch, false)
	}
	ch := s.sf.DoChan(fl.key, func() (any, error) { return nil, errFlightGone })
	fl.waiters++
	s.mu.Unlock()

	s.metrics.ProfileCache(metrics.CacheShared)
	log.Debug("joined in-flight profile request", logger.Shared(shared))
	return s.await(ctx, fl, ch, true)
}

// errFlightGone no debería observarse: un join siempre encuentra la key viva.
var errFlightGone = errors.New("session: profile flight already finished")

func cacheResult(opts ProfileOptions) string {
	if opts.Force {
		return metrics.CacheForced
	}
	return metrics.CacheMiss
}

func (s *Service) await(ctx context.Context, fl *profileFlight, ch <-chan singleflight.Result, shared bool) (*dto.ProfileResult, error) {
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *(r.Val.(*dto.ProfileResult))
		res.Shared = shared
		return &res, nil
	case <-ctx.Done():
		s.mu.Lock()
		fl.waiters--
		if fl.waiters == 0 && s.flight == fl {
			s.abortFlightLocked()
		}
		s.mu.Unlock()
		return nil, httperrors.Normalize(ctx.Err())
	}
}

// runFlight hace el request real y publica el resultado en el caché si la
// sesión no cambió mientras tanto.
func (s *Service) runFlight(ctx context.Context, fl *profileFlight) (any, error) {
	defer fl.cancel()

	res, err := s.fetchProfile(ctx)

	s.mu.Lock()
	if s.flight == fl {
		s.flight = nil
	}
	if err == nil && fl.gen == s.gen {
		s.cache = &profileEntry{at: s.now(), result: res}
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) fetchProfile(ctx context.Context) (*dto.ProfileResult, error) {
	resp, err := s.api.Do(ctx, client.Request{Method: http.MethodGet, Path: PathMe})
	if err != nil {
		return nil, httperrors.Normalize(err)
	}
	r, err := shape.Parse(resp.Raw)
	if err != nil {
		return nil, httperrors.ErrMalformedResponse.WithCause(err)
	}
	res := &dto.ProfileResult{
		Message: r.Message,
		User:    dto.UserFromMap(r.User),
		Status:  resp.Status,
	}
	if res.User != nil {
		logger.From(ctx).Debug("profile fetched",
			logger.UserID(res.User.ID), logger.Role(res.User.Role.String()), logger.Variant(r.Variant))
	}
	return res, nil
}
