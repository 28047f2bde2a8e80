// Package client es el transporte HTTP hacia la API del backend.
//
// Agrega los headers comunes (JSON, X-Request-ID, CSRF, Bearer), reintenta
// lecturas idempotentes, limita la tasa saliente y normaliza todo error a
// *errors.AppError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httperrors "github.com/dropDatabas3/farmauth/internal/http/errors"
	"github.com/dropDatabas3/farmauth/internal/metrics"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/shape"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderCSRF      = "X-CSRF-Token"
	HeaderCSRFUpper = "X-CSRF-TOKEN"

	maxBodyBytes  = 4 << 20
	maxRetryAfter = 5 * time.Second
)

// TokenSource entrega el bearer actual ("" = sin header Authorization).
type TokenSource interface {
	Token() string
}

// Refresher renueva la sesión tras un 401. rejected es el token que el
// backend rechazó; si ya cambió, el refresher no debe volver a renovar.
type Refresher interface {
	RefreshAfterUnauthorized(ctx context.Context, rejected string) error
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	Retries        int
	RateLimitRPS   float64
	RateBurst      int
	UserAgent      string
	CSRFCookieName string
	Metrics        *metrics.Metrics

	// Transport permite inyectar un RoundTripper (tests).
	Transport http.RoundTripper
}

// Request describe una llamada a la API. Path es relativo a BaseURL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// SkipAuth omite el bearer y el auto-refresh.
	SkipAuth bool
	// NoRefresh mantiene el bearer pero no intenta renovar ante un 401.
	NoRefresh bool
}

// Response es una respuesta 2xx. Payload es el JSON decodificado con
// json.Number, o nil si el body estaba vacío o no era JSON.
type Response struct {
	Status  int
	Header  http.Header
	Raw     []byte
	Payload any
}

type Client struct {
	base       *url.URL
	http       *http.Client
	jar        http.CookieJar
	retries    int
	limiter    *rate.Limiter
	userAgent  string
	csrfCookie string
	metrics    *metrics.Metrics

	mu        sync.RWMutex
	tokens    TokenSource
	refresher Refresher

	// retryStep da la espera base antes del reintento n (1, 2, ...).
	retryStep func(attempt int) time.Duration
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: base url sin esquema http(s): %q", opts.BaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	c := &Client{
		base:       base,
		jar:        jar,
		http:       &http.Client{Timeout: opts.Timeout, Jar: jar, Transport: opts.Transport},
		retries:    opts.Retries,
		userAgent:  opts.UserAgent,
		csrfCookie: opts.CSRFCookieName,
		metrics:    opts.Metrics,
		retryStep:  linearBackoff,
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return c, nil
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 300 * time.Millisecond
}

func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) SetRefresher(r Refresher) {
	c.mu.Lock()
	c.refresher = r
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.Token()
}

func (c *Client) getRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

// CSRFToken lee la cookie anti-forgery del jar ("" si no hay).
func (c *Client) CSRFToken() string {
	if c.csrfCookie == "" {
		return ""
	}
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}

// Cookies devuelve las cookies vigentes para la API.
func (c *Client) Cookies() []*http.Cookie { return c.jar.Cookies(c.base) }

// SetCookies carga cookies para la API en el jar (sesión guardada por el CLI).
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) > 0 {
		c.jar.SetCookies(c.base, cookies)
	}
}

// Get, Post y Delete son atajos sobre Do.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do ejecuta req. Devuelve *Response sólo para 2xx; cualquier otro resultado
// es un *errors.AppError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	resp, sentToken, err := c.doWithRetry(ctx, req)
	if err == nil || req.SkipAuth || req.NoRefresh || httperrors.StatusOf(err) != http.StatusUnauthorized {
		return resp, err
	}

	r := c.getRefresher()
	if r == nil {
		return nil, err
	}
	log := logger.From(ctx).With(logger.Layer("client"), logger.Endpoint(req.Path))
	if rerr := r.RefreshAfterUnauthorized(ctx, sentToken); rerr != nil {
		log.Debug("auto refresh failed", logger.Err(rerr))
		return nil, err
	}
	log.Debug("auto refresh ok, retrying request")
	req.NoRefresh = true
	resp, _, err = c.doWithRetry(ctx, req)
	return resp, err
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func retryable(err *httperrors.AppError) bool {
	switch {
	case err.Status == 0:
		return err.Code == httperrors.ErrNetwork.Code || err.Code == httperrors.ErrTimeout.Code
	case err.Status == http.StatusTooManyRequests, err.Status >= 500:
		return true
	}
	return false
}

// retryPolicy es un backoff.BackOff lineal que respeta el Retry-After del
// último error, con tope maxRetryAfter.
type retryPolicy struct {
	step func(attempt int) time.Duration
	last func() *httperrors.AppError
	n    int
}

func (p *retryPolicy) NextBackOff() time.Duration {
	p.n++
	wait := p.step(p.n)
	if last := p.last(); last != nil && last.RetryAfter > wait {
		wait = min(last.RetryAfter, maxRetryAfter)
	}
	return wait
}

func (p *retryPolicy) Reset() { p.n = 0 }

func (c *Client) doWithRetry(ctx context.Context, req Request) (*Response, string, error) {
	tries := 1
	if isIdempotent(req.Method) {
		tries += c.retries
	}

	var (
		attempt   int
		sentToken string
		lastErr   *httperrors.AppError
	)
	policy := &retryPolicy{step: c.retryStep, last: func() *httperrors.AppError { return lastErr }}

	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		resp, tok, err := c.once(ctx, req, attempt)
		sentToken = tok
		if err == nil {
			return resp, nil
		}
		lastErr = httperrors.Normalize(err)
		if ctx.Err() != nil || !retryable(lastErr) {
			return nil, backoff.Permanent(lastErr)
		}
		return nil, lastErr
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(tries)))
	if err == nil {
		return resp, sentToken, nil
	}

	// ctx cancelado durante la espera: Retry devuelve la causa del contexto
	var appErr *httperrors.AppError
	if errors.As(err, &appErr) {
		return nil, sentToken, appErr
	}
	return nil, sentToken, httperrors.Normalize(err)
}

func (c *Client) resolve(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// once hace un único intento. Devuelve el bearer efectivamente enviado.
func (c *Client) once(ctx context.Context, req Request, attempt int) (*Response, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			// el deadline no alcanza para esperar el próximo turno
			return nil, "", httperrors.ErrTimeout.WithCause(err)
		}
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", httperrors.ErrUnexpected.WithCause(err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, "", httperrors.ErrUnexpected.WithCause(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	rid := uuid.NewString()
	hreq.Header.Set(HeaderRequestID, rid)

	if isStateChanging(req.Method) {
		if csrf := c.CSRFToken(); csrf != "" {
			hreq.Header.Set(HeaderCSRF, csrf)
			hreq.Header[HeaderCSRFUpper] = []string{csrf}
		}
	}

	var tok string
	if !req.SkipAuth {
		if tok = c.token(); tok != "" {
			hreq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	log := logger.From(ctx).With(
		logger.Layer("client"),
		logger.Method(req.Method),
		logger.Endpoint(req.Path),
		logger.RequestID(rid),
		logger.Attempt(attempt),
	)

	start := time.Now()
	hresp, err := c.http.Do(hreq)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(req.Path, req.Method, 0, elapsed)
		log.Debug("request failed", logger.Duration(elapsed), logger.Err(err))
		return nil, tok, err
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(hresp.Body, maxBodyBytes))
	c.metrics.ObserveRequest(req.Path, req.Method, hresp.StatusCode, elapsed)
	if err != nil {
		log.Debug("read body failed", logger.Status(hresp.StatusCode), logger.Err(err))
		return nil, tok, err
	}

	payload, derr := shape.Decode(raw)
	if derr != nil {
		log.Debug("non-json body", logger.Status(hresp.StatusCode), zap.Int("bytes", len(raw)))
		payload = nil
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		appErr := httperrors.FromResponse(hresp.StatusCode, payload, hresp.Header)
		log.Debug("backend error",
			logger.Status(hresp.StatusCode),
			logger.Duration(elapsed),
			zap.String("code", appErr.Code),
		)
		return nil, tok, appErr
	}

	log.Debug("request ok", logger.Status(hresp.StatusCode), logger.Duration(elapsed))
	return &Response{
		Status:  hresp.StatusCode,
		Header:  hresp.Header,
		Raw:     raw,
		Payload: payload,
	}, tok, nil
}
