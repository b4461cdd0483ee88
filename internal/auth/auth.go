package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey  = errors.New("missing API key")
	ErrInvalidKey  = errors.New("invalid API key")
	ErrUnavailable = errors.New("auth backend unavailable")
)

// keyPrefixLen is how many leading characters of a key are stored in clear
// for lookup, e.g. "bk_4fe21". The rest is only ever compared against the
// stored bcrypt hash.
const keyPrefixLen = 8

// Principal identifies an authenticated telemetry client.
type Principal struct {
	Name   string // operator-assigned client name, e.g. "webmail-prod"
	Source string // which authenticator admitted it: "static" or "postgres"
}

// Authenticator resolves a bearer token to the calling client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// ExtractBearer pulls the token out of an Authorization header value.
// RFC 6750: the "Bearer" scheme is case-insensitive.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingKey
	}
	token := header
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingKey
	}
	return token, nil
}

// StaticKey is one operator-provisioned key as listed in the config file.
// Only the bcrypt hash and the clear prefix are written down; beaconctl
// keygen prints all three fields for pasting.
type StaticKey struct {
	Name   string
	Prefix string
	Hash   string
}

// StaticAuthenticator verifies keys against a fixed in-config list. It is
// the no-database mode; deployments that rotate keys centrally use
// PostgresAuthenticator instead.
type StaticAuthenticator struct {
	byPrefix map[string]StaticKey
}

func NewStaticAuthenticator(keys []StaticKey) *StaticAuthenticator {
	byPrefix := make(map[string]StaticKey, len(keys))
	for _, k := range keys {
		byPrefix[k.Prefix] = k
	}
	return &StaticAuthenticator{byPrefix: byPrefix}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingKey
	}
	if len(token) < keyPrefixLen {
		return nil, ErrInvalidKey
	}
	k, ok := a.byPrefix[token[:keyPrefixLen]]
	if !ok {
		return nil, ErrInvalidKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(token)); err != nil {
		return nil, ErrInvalidKey
	}
	return &Principal{Name: k.Name, Source: "static"}, nil
}

// GenerateKey mints a bk_ API key and returns (key, bcryptHash, prefix).
// The key is shown to the operator once; only the hash and prefix are
// persisted.
func GenerateKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateKey: %w", err)
	}
	key := "bk_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateKey: %w", err)
	}
	return key, string(hash), key[:keyPrefixLen], nil
}
