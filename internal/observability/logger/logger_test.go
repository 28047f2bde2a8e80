package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestBuild_DebugOverridesLevel(t *testing.T) {
	l := build(Config{Env: "prod", Level: "error", Debug: true})
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = build(Config{Env: "dev", Level: "warn"})
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestTokenHint_NeverExposesToken(t *testing.T) {
	tok := "eyJhbGciOiJIUzI1NiJ9.payload.signature-ab12"
	f := TokenHint(tok)
	assert.Equal(t, "token_hint", f.Key)
	assert.Equal(t, "…ab12", f.String)

	f = TokenHint("short")
	assert.Equal(t, "token_len", f.Key)
	assert.EqualValues(t, 5, f.Integer)
}

func TestFrom_PrefersContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core))

	FromWithFields(ctx, Component("session")).Info("hola", Op("login"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "session", fields["component"])
	assert.Equal(t, "login", fields["op"])
}

func TestSet_NilFallsBackToNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	Set(nil)
	assert.NotNil(t, L())
	assert.NotPanics(t, func() { L().Info("descartado") })
}
