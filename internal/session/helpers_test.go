package session

import (
	"context"
	"sync"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/storage"
	"github.com/dropDatabas3/farmauth/internal/testutil/fakeapi"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	api   *fakeapi.Server
	http  *client.Client
	store storage.Store
	svc   *Service
	clock *fakeClock
	logs  *observer.ObservedLogs
	ctx   context.Context
}

func newHarness(t *testing.T, mod ...func(*Options)) *harness {
	t.Helper()
	api := fakeapi.New(t)
	hc, err := client.New(client.Options{BaseURL: api.URL(), CSRFCookieName: "csrf_token"})
	require.NoError(t, err)

	opts := Options{BearerMode: true, LegacyKeys: []string{"token", "user"}}
	for _, m := range mod {
		m(&opts)
	}
	store := storage.NewMemory()
	svc := New(Deps{API: hc, Store: store}, opts)
	clock := newClock()
	svc.now = clock.Now

	core, logs := observer.New(zap.DebugLevel)
	return &harness{
		api:   api,
		http:  hc,
		store: store,
		svc:   svc,
		clock: clock,
		logs:  logs,
		ctx:   logger.ToContext(context.Background(), zap.New(core)),
	}
}

// signJWT firma claims con HS256; la firma no se verifica del lado cliente.
func signJWT(t *testing.T, claims jwtv5.MapClaims) string {
	t.Helper()
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func (h *harness) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, err := h.store.Get(context.Background(), key)
	if storage.IsNotFound(err) {
		return "", false
	}
	require.NoError(t, err)
	return v, true
}

var userPayload = map[string]any{
	"data": map[string]any{
		"user": map[string]any{"id": 1, "fullname": "Ana Pérez", "email": "ana@finca.co", "role": "instructora"},
	},
}
