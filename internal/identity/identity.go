// Package identity resolves caller tokens to identities.
//
// A verifier returns (nil, nil) when it does not recognize a token; errors are
// reserved for verifier failures. The gateway treats both as unauthenticated.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
)

// Identity is an authenticated caller.
type Identity struct {
	Subject string
	Method  string
}

// Verifier resolves a token to an identity.
type Verifier interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// StaticVerifier accepts a fixed token table. Comparison is constant time per
// entry so response timing does not reveal how much of a token matched.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier builds a verifier from token → subject pairs.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	cp := make(map[string]string, len(tokens))
	for tok, sub := range tokens {
		if tok != "" && sub != "" {
			cp[tok] = sub
		}
	}
	return &StaticVerifier{tokens: cp}
}

func (v *StaticVerifier) Authenticate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}
	var subject string
	for tok, sub := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(tok), []byte(token)) == 1 {
			subject = sub
		}
	}
	if subject == "" {
		return nil, nil
	}
	return &Identity{Subject: subject, Method: "static"}, nil
}

// Chain tries verifiers in order and returns the first resolved identity.
// A failing verifier is logged and skipped so one broken backend cannot lock
// out callers the others would accept; if none resolves, the last error is
// returned.
type Chain struct {
	verifiers []Verifier
	logger    *slog.Logger
}

// NewChain builds a chain. Nil verifiers are ignored.
func NewChain(logger *slog.Logger, verifiers ...Verifier) (*Chain, error) {
	c := &Chain{logger: logger}
	for _, v := range verifiers {
		if v != nil {
			c.verifiers = append(c.verifiers, v)
		}
	}
	if len(c.verifiers) == 0 {
		return nil, errors.New("at least one identity verifier is required")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func (c *Chain) Authenticate(ctx context.Context, token string) (*Identity, error) {
	var lastErr error
	for _, v := range c.verifiers {
		id, err := v.Authenticate(ctx, token)
		if err != nil {
			c.logger.WarnContext(ctx, "identity verifier failed", "error", err)
			lastErr = err
			continue
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, lastErr
}
