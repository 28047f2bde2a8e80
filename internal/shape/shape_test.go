package shape

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode([]byte(s))
	require.NoError(t, err)
	return v
}

// wrap envuelve v en n niveles alternando claves de envelope y claves arbitrarias.
func wrap(v any, n int) any {
	keys := []string{"data", "payload", "result", "wrapper", "response", "body", "meta", "x"}
	for i := 0; i < n; i++ {
		v = map[string]any{keys[i%len(keys)]: v}
	}
	return v
}

func TestFindToken_DepthBound(t *testing.T) {
	for _, key := range []string{"access_token", "accessToken", "Token", "jwt-token", "refresh_token"} {
		for depth := 0; depth <= MaxDepth; depth++ {
			payload := wrap(map[string]any{key: "tok-" + key}, depth)
			tok, ok := FindToken(payload)
			assert.Truef(t, ok, "key=%s depth=%d", key, depth)
			assert.Equal(t, "tok-"+key, tok)
		}
		_, ok := FindToken(wrap(map[string]any{key: "tok-deep"}, MaxDepth+1))
		assert.Falsef(t, ok, "key=%s beyond max depth must not be found", key)
	}
}

func TestFindToken_Priority(t *testing.T) {
	p := decode(t, `{"refresh_token":"refresh-1","token":"plain-1","access_token":"Bearer access-1"}`)
	tok, ok := FindToken(p)
	require.True(t, ok)
	assert.Equal(t, "access-1", tok)

	// direct match at root wins over an envelope
	p = decode(t, `{"data":{"access_token":"inner-1"},"token":"outer-1"}`)
	tok, _ = FindToken(p)
	assert.Equal(t, "outer-1", tok)

	// envelopes in fixed order: data before result
	p = decode(t, `{"result":{"token":"from-result"},"data":{"token":"from-data"}}`)
	tok, _ = FindToken(p)
	assert.Equal(t, "from-data", tok)
}

func TestFindToken_SkipsControlKeysAndInvalid(t *testing.T) {
	p := decode(t, `{"message":{"token":"nope-1"},"status":{"token":"nope-2"},"token":"a b c"}`)
	_, ok := FindToken(p)
	assert.False(t, ok)

	p = decode(t, `{"session":{"auth":{"jwt":"found-it"}}}`)
	tok, ok := FindToken(p)
	assert.True(t, ok)
	assert.Equal(t, "found-it", tok)

	p = decode(t, `{"items":[{"x":1},{"access_token":"in-array"}]}`)
	tok, ok = FindToken(p)
	assert.True(t, ok)
	assert.Equal(t, "in-array", tok)
}

func TestFindToken_Deterministic(t *testing.T) {
	p := decode(t, `{"zeta":{"token":"z-token"},"alpha":{"token":"a-token"},"mid":{"token":"m-token"}}`)
	first, _ := FindToken(p)
	for i := 0; i < 50; i++ {
		got, _ := FindToken(p)
		require.Equal(t, first, got)
	}
	assert.Equal(t, "a-token", first)
}

func TestFindToken_DoesNotMutate(t *testing.T) {
	p := decode(t, `{"data":{"data":{"access_token":"Bearer xyz","user":{"id":7}}}}`)
	before, _ := json.Marshal(p)
	FindToken(p)
	FindUser(p)
	after, _ := json.Marshal(p)
	assert.JSONEq(t, string(before), string(after))
}

func TestFindUser_Containers(t *testing.T) {
	user := map[string]any{"id": json.Number("7"), "fullname": "Ana Pérez"}
	for _, key := range []string{"user", "usuario", "data", "profile", "perfil", "account", "payload", "result"} {
		payload := map[string]any{"message": "ok", key: user}
		got, ok := FindUser(payload)
		require.Truef(t, ok, "container %s", key)
		assert.True(t, reflect.DeepEqual(user, got))
	}
	for depth := 1; depth <= MaxDepth; depth++ {
		_, ok := FindUser(wrap(user, depth))
		assert.Truef(t, ok, "depth %d", depth)
	}
	_, ok := FindUser(wrap(user, MaxDepth+1))
	assert.False(t, ok)
}

func TestFindUser_SelfAndStatus(t *testing.T) {
	u, ok := FindUser(decode(t, `{"id":3,"email":"x@granja.test"}`))
	require.True(t, ok)
	assert.Equal(t, "x@granja.test", u["email"])

	// id + estado sin otras claves de identidad
	assert.True(t, LooksLikeUser(map[string]any{"id": 1, "estado": "activo"}))
	assert.False(t, LooksLikeUser(map[string]any{"status": "ok", "code": 200}))
	assert.False(t, LooksLikeUser(map[string]any{"email": nil}))

	_, ok = FindUser(decode(t, `{"message":"ok","status":200}`))
	assert.False(t, ok)
}

func TestParse_Variants(t *testing.T) {
	cases := []struct {
		body    string
		token   string
		userID  string
		variant string
	}{
		{`{"access_token":"abc123def456","user":{"id":1,"role":1}}`, "abc123def456", "1", "flat"},
		{`{"data":{"token":"Bearer tok-data","user":{"id":2}}}`, "tok-data", "2", "data"},
		{`{"data":{"data":{"access_token":"Bearer xyz","user":{"id":7,"role":2}}}}`, "xyz", "7", "data.data"},
		{`{"payload":{"result":{"jwt_token":"deep-token"}},"profile":{"id":9,"name":"Luis"}}`, "deep-token", "9", "search"},
		{`{"data":{"id":5,"fullname":"Cookie User"}}`, "", "5", "search"},
	}
	for _, c := range cases {
		r, err := Parse([]byte(c.body))
		require.NoError(t, err, c.body)
		assert.Equal(t, c.token, r.Token, c.body)
		require.NotNil(t, r.User, c.body)
		assert.Equal(t, c.userID, r.User["id"].(json.Number).String(), c.body)
		assert.Equal(t, c.variant, r.Variant, c.body)
	}
}

func TestParse_NothingFound(t *testing.T) {
	r, err := Parse([]byte(`{"message":"ok"}`))
	require.NoError(t, err)
	assert.Empty(t, r.Token)
	assert.Nil(t, r.User)
	assert.Equal(t, "ok", r.Message)
	assert.Empty(t, r.Variant)

	r, err = Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, r.Payload)

	_, err = Parse([]byte("<html>502</html>"))
	assert.ErrorIs(t, err, ErrNotJSON)
}

func TestFindMessageAndUnwrap(t *testing.T) {
	p := decode(t, `{"data":{"message":"Correo enviado","reset_token":"r1"}}`)
	assert.Equal(t, "Correo enviado", FindMessage(p))
	assert.Equal(t, "r1", Unwrap(p)["reset_token"])

	p = decode(t, `{"message":"root","should_clear_auth":true}`)
	assert.Equal(t, true, Unwrap(p)["should_clear_auth"])
	assert.Empty(t, Unwrap("texto"))
}

func TestNormKey(t *testing.T) {
	assert.Equal(t, "accesstoken", NormKey("Access-Token"))
	assert.Equal(t, "accesstoken", NormKey("access_token"))
	assert.Equal(t, "jwttoken", NormKey("JWT Token"))
}
