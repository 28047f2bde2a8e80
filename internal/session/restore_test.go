package session

import (
	"context"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestore(t *testing.T) {
	h := newHarness(t)
	tok := signJWT(t, jwtv5.MapClaims{"sub": "9", "exp": h.clock.Now().Add(time.Hour).Unix()})
	require.NoError(t, h.store.Set(context.Background(), "farm_access_token", tok, 0))

	ok, err := h.svc.Restore(h.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tok, h.svc.Token())
	assert.Equal(t, Authenticated, h.svc.State())
	assert.Equal(t, "9", h.svc.Claims().Subject)
}

func TestRestore_DiscardsExpired(t *testing.T) {
	h := newHarness(t)
	tok := signJWT(t, jwtv5.MapClaims{"sub": "9", "exp": h.clock.Now().Add(-time.Hour).Unix()})
	require.NoError(t, h.store.Set(context.Background(), "farm_access_token", tok, 0))

	ok, err := h.svc.Restore(h.ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, h.svc.Token())
	_, found := h.stored(t, "farm_access_token")
	assert.False(t, found)
}

func TestRestore_NothingStoredOrCookieMode(t *testing.T) {
	h := newHarness(t)
	ok, err := h.svc.Restore(h.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	c := newHarness(t, func(o *Options) { o.BearerMode = false })
	require.NoError(t, c.store.Set(context.Background(), "farm_access_token", "tok-123456", 0))
	ok, err = c.svc.Restore(c.ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Anonymous, c.svc.State())
}

func TestLoginPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.LoginPath(ctx)
	require.NoError(t, err)
	assert.Empty(t, p)

	require.NoError(t, h.svc.SetLoginPath(ctx, "/instructores"))
	p, err = h.svc.LoginPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/instructores", p)

	require.NoError(t, h.svc.SetLoginPath(ctx, ""))
	p, err = h.svc.LoginPath(ctx)
	require.NoError(t, err)
	assert.Empty(t, p)
}
