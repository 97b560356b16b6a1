package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"valid-token": "user_id", "": "ignored"})
	ctx := context.Background()

	id, err := v.Authenticate(ctx, "valid-token")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user_id", id.Subject)
	assert.Equal(t, "static", id.Method)

	for _, tok := range []string{"", "invalid", "valid-token ", "VALID-TOKEN"} {
		id, err := v.Authenticate(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, id, "token %q must not resolve", tok)
	}
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewJWTVerifier("secret", "clm", "clm-api")

	t.Run("valid token resolves its subject", func(t *testing.T) {
		tok, err := v.Issue("svc-onboarding", time.Minute)
		require.NoError(t, err)
		id, err := v.Authenticate(ctx, tok)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, "svc-onboarding", id.Subject)
		assert.Equal(t, "jwt", id.Method)
	})

	t.Run("expired token is not resolved", func(t *testing.T) {
		tok, err := v.Issue("svc", -time.Minute)
		require.NoError(t, err)
		id, err := v.Authenticate(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("foreign signature is not resolved", func(t *testing.T) {
		other := NewJWTVerifier("other-secret", "clm", "clm-api")
		tok, err := other.Issue("svc", time.Minute)
		require.NoError(t, err)
		id, err := v.Authenticate(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("wrong audience is not resolved", func(t *testing.T) {
		other := NewJWTVerifier("secret", "clm", "someone-else")
		tok, err := other.Issue("svc", time.Minute)
		require.NoError(t, err)
		id, err := v.Authenticate(ctx, tok)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("non-jwt strings are ignored", func(t *testing.T) {
		id, err := v.Authenticate(ctx, "valid-token")
		require.NoError(t, err)
		assert.Nil(t, id)
	})
}

func TestKeyringVerifier(t *testing.T) {
	ctx := context.Background()
	k := NewKeyringVerifier()
	token, err := k.Generate("k1", "partner-a", bcrypt.MinCost)
	require.NoError(t, err)

	id, err := k.Authenticate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "partner-a", id.Subject)
	assert.Equal(t, "api_key", id.Method)

	id, err = k.Authenticate(ctx, "k1.wrong-secret")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = k.Authenticate(ctx, "unknown.secret")
	require.NoError(t, err)
	assert.Nil(t, id)

	assert.Error(t, k.Add("bad.id", "x", "hash"))
	assert.Error(t, k.Add("k2", "x", "not-a-bcrypt-hash"))
}

type failingVerifier struct{}

func (failingVerifier) Authenticate(context.Context, string) (*Identity, error) {
	return nil, errors.New("identity backend down")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewChain(logger)
	require.Error(t, err)

	chain, err := NewChain(logger, failingVerifier{}, nil, NewStaticVerifier(map[string]string{"valid-token": "user_id"}))
	require.NoError(t, err)

	id, err := chain.Authenticate(ctx, "valid-token")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user_id", id.Subject)

	id, err = chain.Authenticate(ctx, "nope")
	assert.Nil(t, id)
	assert.Error(t, err, "backend failure surfaces when nothing resolves")
}
