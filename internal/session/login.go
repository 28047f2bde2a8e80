package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/jwt"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/role"
	"github.com/dropDatabas3/farmauth/internal/shape"
)

// Login envía las credenciales y establece la sesión.
//
// Con token: valida formato y expiración, lo acepta y, si no vino usuario,
// deriva uno mínimo de las claims. Sin token pero con usuario: sesión por
// cookie. Sin ninguno: TOKEN_MISSING. Cualquier falla limpia la sesión antes
// de devolver el error normalizado.
func (s *Service) Login(ctx context.Context, identification, password string) (*dto.LoginResult, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	log := logger.From(ctx).With(logger.Component("session"), logger.Op("login"))
	s.setState(Authenticating)

	res, err := s.login(ctx, identification, password)
	if err != nil {
		s.clearSession(ctx, "login_failed")
		log.Info("login failed", logger.Status(httperrors.StatusOf(err)), logger.Err(err))
		return nil, err
	}

	fields := []zap.Field{logger.Bool("cookie_session", res.CookieSession), logger.Variant(res.Variant)}
	if res.User != nil {
		fields = append(fields, logger.UserID(res.User.ID), logger.Role(res.User.Role.String()))
	}
	if res.AccessToken != "" {
		fields = append(fields, logger.TokenHint(res.AccessToken))
	}
	log.Info("login ok", fields...)
	return res, nil
}

func (s *Service) login(ctx context.Context, identification, password string) (*dto.LoginResult, error) {
	if strings.TrimSpace(identification) == "" || password == "" {
		return nil, httperrors.ErrValidation.WithMessage("Ingresa tu identificación y contraseña.")
	}

	lctx, cancel := context.WithTimeout(ctx, s.opts.LoginTimeout)
	defer cancel()

	resp, err := s.api.Do(lctx, client.Request{
		Method:   http.MethodPost,
		Path:     PathLogin,
		Body:     dto.LoginRequest{Identification: strings.TrimSpace(identification), Password: password},
		SkipAuth: true,
	})
	if err != nil {
		if errors.Is(lctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, httperrors.ErrTimeout.WithCause(err)
		}
		return nil, httperrors.Normalize(err)
	}

	r, err := shape.Parse(resp.Raw)
	if err != nil {
		return nil, httperrors.ErrMalformedResponse.WithCause(err)
	}

	out := &dto.LoginResult{Message: r.Message, Variant: r.Variant, User: dto.UserFromMap(r.User)}
	switch {
	case r.Token != "":
		claims, err := s.checkToken(r.Token)
		if err != nil {
			return nil, err
		}
		if out.User == nil {
			out.User = userFromClaims(claims)
		}
		s.acceptToken(ctx, r.Token, claims)
		out.AccessToken = r.Token

	case out.User != nil:
		out.CookieSession = true

	default:
		return nil, httperrors.ErrTokenMissing.Clone()
	}

	s.mu.Lock()
	s.gen++
	s.abortFlightLocked()
	s.cache = nil
	if out.User != nil {
		s.cache = &profileEntry{at: s.now(), result: &dto.ProfileResult{Message: out.Message, User: out.User, Status: resp.Status}}
	}
	s.state = Authenticated
	s.mu.Unlock()
	s.metrics.SetState(string(Authenticated), allStates)
	return out, nil
}

// checkToken valida estructura y expiración. Un token opaco no tiene claims
// y se acepta tal cual.
func (s *Service) checkToken(tok string) (*jwt.Claims, error) {
	if !jwt.ValidFormat(tok) {
		return nil, httperrors.ErrInvalidTokenFormat.Clone()
	}
	claims, err := jwt.Decode(tok)
	switch {
	case errors.Is(err, jwt.ErrNotJWT):
		return nil, nil
	case err != nil:
		return nil, httperrors.ErrInvalidTokenFormat.WithCause(err)
	case claims.Expired(s.now(), jwt.DefaultLeeway):
		return nil, httperrors.ErrTokenExpired.Clone()
	}
	return claims, nil
}

// userFromClaims arma un usuario mínimo cuando el login sólo trajo el token.
func userFromClaims(c *jwt.Claims) *dto.User {
	if c == nil || c.Subject == "" {
		return nil
	}
	return &dto.User{
		ID:       c.Subject,
		Email:    c.Email,
		Fullname: c.Name,
		RawRole:  c.Role,
		Role:     role.Normalize(c.Role),
		Raw:      c.Raw,
	}
}
