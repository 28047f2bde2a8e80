// Package session es el servicio de sesión del cliente: login, refresh,
// perfil del usuario actual, logout y recuperación de contraseña contra la
// API del backend.
//
// Todo el estado (token, caché de perfil, request en vuelo, estado del ciclo
// de vida) vive en el Service; no hay estado global de paquete.
package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	"github.com/dropDatabas3/farmauth/internal/jwt"
	"github.com/dropDatabas3/farmauth/internal/metrics"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/storage"
)

// Endpoints relativos a la base de la API.
const (
	PathLogin          = "/auth/login"
	PathRefresh        = "/auth/refresh"
	PathMe             = "/auth/me"
	PathLogout         = "/auth/logout"
	PathRecover        = "/auth/recover"
	PathResetPassword  = "/auth/reset-password"
	PathChangePassword = "/auth/change-password"
)

// State es la etapa del ciclo de vida de la sesión.
type State string

const (
	Anonymous      State = "anonymous"
	Authenticating State = "authenticating"
	Authenticated  State = "authenticated"
	Refreshing     State = "refreshing"
)

var allStates = []string{string(Anonymous), string(Authenticating), string(Authenticated), string(Refreshing)}

// API es lo que el servicio necesita del transporte; *client.Client lo cumple.
type API interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Deps son las dependencias inyectadas.
type Deps struct {
	API     API
	Store   storage.Store    // nil = no persiste nada
	Metrics *metrics.Metrics // nil = sin métricas
}

// Options controla el comportamiento; los ceros toman los defaults.
type Options struct {
	BearerMode   bool
	StorageKey   string
	LoginPathKey string
	LegacyKeys   []string
	LoginTimeout time.Duration
	ProfileTTL   time.Duration
	AutoRefresh  bool
}

const (
	defaultStorageKey   = "farm_access_token"
	defaultLoginPathKey = "farm_login_path"
	defaultLoginTimeout = 20 * time.Second
	defaultProfileTTL   = 2 * time.Minute
	storageOpTimeout    = 3 * time.Second
)

type profileEntry struct {
	at     time.Time
	result *dto.ProfileResult
}

type Service struct {
	api     API
	store   storage.Store
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time

	// authMu serializa login, refresh y logout.
	authMu sync.Mutex

	mu        sync.Mutex
	state     State
	token     string
	claims    *jwt.Claims
	gen       uint64 // cambia con cada login o limpieza; invalida flights viejos
	cache     *profileEntry
	flight    *profileFlight
	flightSeq uint64

	sf singleflight.Group
}

// New arma el servicio. Si deps.API es un *client.Client (o cualquier cosa con
// SetTokenSource/SetRefresher) se conecta como fuente del bearer y, con
// AutoRefresh, como refresher ante 401.
func New(deps Deps, opts Options) *Service {
	if opts.StorageKey == "" {
		opts.StorageKey = defaultStorageKey
	}
	if opts.LoginPathKey == "" {
		opts.LoginPathKey = defaultLoginPathKey
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = defaultProfileTTL
	}
	st := deps.Store
	if st == nil {
		st = storage.NewNone()
	}

	s := &Service{
		api:     deps.API,
		store:   st,
		metrics: deps.Metrics,
		opts:    opts,
		now:     time.Now,
		state:   Anonymous,
	}
	if ts, ok := deps.API.(interface{ SetTokenSource(client.TokenSource) }); ok {
		ts.SetTokenSource(s)
	}
	if opts.AutoRefresh {
		if rs, ok := deps.API.(interface{ SetRefresher(client.Refresher) }); ok {
			rs.SetRefresher(s)
		}
	}
	s.metrics.SetState(string(Anonymous), allStates)
	return s
}

// Token devuelve el bearer en memoria ("" en sesiones sólo por cookie).
func (s *Service) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) IsAuthenticated() bool {
	st := s.State()
	return st == Authenticated || st == Refreshing
}

// User devuelve el último perfil conocido, aunque el caché esté vencido.
func (s *Service) User() *dto.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil || s.cache.result == nil {
		return nil
	}
	return s.cache.result.User
}

// Claims devuelve las claims del token actual (nil si es opaco o no hay).
func (s *Service) Claims() *jwt.Claims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.metrics.SetState(string(st), allStates)
}

// storageCtx desacopla las operaciones de storage de la cancelación del
// llamador: una limpieza debe completarse aunque el request se haya cancelado.
func storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storageOpTimeout)
}

// acceptToken fija el token en memoria y, en modo bearer, lo persiste con TTL
// hasta su exp. Sin exp se persiste sin vencimiento.
func (s *Service) acceptToken(ctx context.Context, tok string, claims *jwt.Claims) {
	s.mu.Lock()
	s.token = tok
	s.claims = claims
	s.mu.Unlock()

	if !s.opts.BearerMode {
		return
	}
	sctx, cancel := storageCtx(ctx)
	defer cancel()

	// ttl <= 0 en el Store significa "sin vencimiento": un token que ya pasó su
	// exp (aceptado por el leeway) queda sólo en memoria.
	var ttl time.Duration
	if claims != nil && !claims.ExpiresAt.IsZero() {
		ttl = claims.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			_ = s.store.Delete(sctx, s.opts.StorageKey)
			logger.From(ctx).Debug("token within leeway not persisted",
				logger.Component("session"), logger.Key(s.opts.StorageKey))
			return
		}
	}
	if err := s.store.Set(sctx, s.opts.StorageKey, tok, ttl); err != nil {
		logger.From(ctx).Warn("token not persisted",
			logger.Component("session"), logger.Key(s.opts.StorageKey), logger.Err(err))
	}
}

// clearSession vacía token, claims, caché de perfil y request en vuelo, y
// borra el token persistido. extraKeys se borran además del token.
func (s *Service) clearSession(ctx context.Context, reason string, extraKeys ...string) {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.cache = nil
	s.gen++
	s.abortFlightLocked()
	s.state = Anonymous
	s.mu.Unlock()

	s.metrics.SessionCleared(reason)
	s.metrics.SetState(string(Anonymous), allStates)

	log := logger.From(ctx).With(logger.Component("session"), logger.Op("clear"))
	sctx, cancel := storageCtx(ctx)
	defer cancel()
	for _, k := range append([]string{s.opts.StorageKey}, extraKeys...) {
		if err := s.store.Delete(sctx, k); err != nil {
			log.Debug("storage key not removed", logger.Key(k), logger.Err(err))
		}
	}
	log.Debug("session cleared", logger.String("reason", reason))
}
