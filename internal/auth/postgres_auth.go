package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ClientStore abstracts the registry lookup for testability.
type ClientStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error)
}

type clientRow struct {
	Name    string
	KeyHash string
}

// sqlClientStore is the real implementation over the api_clients table.
type sqlClientStore struct {
	db *sql.DB
}

func (s *sqlClientStore) LookupByPrefix(ctx context.Context, prefix string) (*clientRow, error) {
	row := &clientRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, key_hash FROM api_clients WHERE key_prefix = $1 AND enabled`,
		prefix,
	).Scan(&row.Name, &row.KeyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No client with this prefix. Reject, never fail open.
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("sqlClientStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates API keys against the api_clients table,
// with a stale-while-revalidate Cache in front so the registry lookup plus
// bcrypt stays off the ingest hot path.
type PostgresAuthenticator struct {
	store  ClientStore
	cache  *Cache
	logger *zap.Logger
}

// PostgresConfig configures the PostgresAuthenticator.
type PostgresConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates an authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlClientStore{db: cfg.DB},
		cache:  NewCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore injects a store, for tests.
func newPostgresAuthenticatorWithStore(store ClientStore, cache *Cache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate resolves the token via the cache first. A fresh hit returns
// immediately; a stale hit returns the stale principal and refreshes in the
// background; a miss does the full lookup synchronously.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingKey
	}

	result := a.cache.Get(token)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(token)
		}
		return result.Principal, nil
	}

	principal, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(token, principal)
	return principal, nil
}

// backgroundRefresh re-verifies the key off the request path. Errors only
// evict the entry; the caller already got the stale value.
func (a *PostgresAuthenticator) backgroundRefresh(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	principal, err := a.lookupAndVerify(ctx, token)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(token)
		return
	}
	a.cache.Set(token, principal)
}

// lookupAndVerify does the prefix lookup plus bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, token string) (*Principal, error) {
	if len(token) < keyPrefixLen {
		return nil, ErrInvalidKey
	}

	row, err := a.store.LookupByPrefix(ctx, token[:keyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(token)); err != nil {
		return nil, ErrInvalidKey
	}

	return &Principal{Name: row.Name, Source: "postgres"}, nil
}

// handleLookupError separates "bad key" from "registry unreachable" so the
// transport layer can answer 401 versus 503.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*Principal, error) {
	if errors.Is(lookupErr, ErrInvalidKey) {
		return nil, ErrInvalidKey
	}

	a.logger.Warn("auth registry unreachable", zap.Error(lookupErr))
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lookupErr)
}
