package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// KeyringVerifier accepts API keys of the form "<keyID>.<secret>". Only bcrypt
// hashes of secrets are held.
type KeyringVerifier struct {
	mu   sync.RWMutex
	keys map[string]apiKey
}

type apiKey struct {
	subject string
	hash    []byte
}

// NewKeyringVerifier creates an empty keyring.
func NewKeyringVerifier() *KeyringVerifier {
	return &KeyringVerifier{keys: make(map[string]apiKey)}
}

// Add registers a key id with an existing bcrypt hash.
func (k *KeyringVerifier) Add(keyID, subject, bcryptHash string) error {
	if keyID == "" || subject == "" || strings.Contains(keyID, ".") {
		return errors.New("key id and subject are required and key id cannot contain '.'")
	}
	if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
		return fmt.Errorf("invalid bcrypt hash for key %s: %w", keyID, err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[keyID] = apiKey{subject: subject, hash: []byte(bcryptHash)}
	return nil
}

// Generate mints a new key for subject and returns the full token once.
func (k *KeyringVerifier) Generate(keyID, subject string, cost int) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	if err := k.Add(keyID, subject, string(hash)); err != nil {
		return "", err
	}
	return keyID + "." + secret, nil
}

func (k *KeyringVerifier) Authenticate(_ context.Context, token string) (*Identity, error) {
	keyID, secret, ok := strings.Cut(token, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, nil
	}
	k.mu.RLock()
	key, found := k.keys[keyID]
	k.mu.RUnlock()
	if !found {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword(key.hash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not verify api key: %w", err)
	}
	return &Identity{Subject: key.subject, Method: "api_key"}, nil
}
