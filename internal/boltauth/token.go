// Package boltauth builds auth tokens and the TokenManagers that refresh
// them, implementing dbtype.TokenManager.
package boltauth

import (
	"context"
	"reflect"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/racing"
)

const (
	keyScheme      = "scheme"
	keyPrincipal   = "principal"
	keyCredentials = "credentials"
	keyRealm       = "realm"
)

// NoAuth returns an empty authentication token for servers with auth
// disabled.
func NoAuth() dbtype.Token {
	return dbtype.Token{Tokens: map[string]any{keyScheme: "none"}}
}

// Basic returns a username/password token, optionally scoped to realm.
func Basic(username, password, realm string) dbtype.Token {
	tokens := map[string]any{
		keyScheme:      "basic",
		keyPrincipal:   username,
		keyCredentials: password,
	}
	if realm != "" {
		tokens[keyRealm] = realm
	}
	return dbtype.Token{Tokens: tokens}
}

// Bearer returns a token carrying a pre-obtained bearer credential (SSO,
// OIDC).
func Bearer(token string) dbtype.Token {
	return dbtype.Token{Tokens: map[string]any{
		keyScheme:      "bearer",
		keyCredentials: token,
	}}
}

// Custom returns a token for schemes this driver has no dedicated
// constructor for.
func Custom(scheme, principal, credentials, realm string, parameters map[string]any) dbtype.Token {
	tokens := map[string]any{
		keyScheme:      scheme,
		keyPrincipal:   principal,
		keyCredentials: credentials,
	}
	if realm != "" {
		tokens[keyRealm] = realm
	}
	if len(parameters) > 0 {
		tokens["parameters"] = parameters
	}
	return dbtype.Token{Tokens: tokens}
}

type staticManager struct {
	token dbtype.Token
}

// Static wraps a fixed token that never needs refreshing; HELLO/LOGON send
// it once and re-authentication never rotates it.
func Static(token dbtype.Token) dbtype.TokenManager {
	return &staticManager{token: token}
}

func (m *staticManager) GetAuthToken(context.Context) (dbtype.Token, error) { return m.token, nil }
func (m *staticManager) HandleSecurityException(context.Context, dbtype.Token, *dbtype.Neo4jError) (bool, error) {
	return false, nil
}

type provider func(context.Context) (dbtype.Token, *time.Time, error)

type refreshingManager struct {
	provider      provider
	token         *dbtype.Token
	expiration    *time.Time
	mutex         racing.Mutex
	retriableCode func(string) bool
}

func (m *refreshingManager) GetAuthToken(ctx context.Context) (dbtype.Token, error) {
	if !m.mutex.TryLock(ctx) {
		return dbtype.Token{}, racing.LockTimeoutError("timed out acquiring auth token lock")
	}
	defer m.mutex.Unlock()
	if m.token == nil || (m.expiration != nil && time.Now().After(*m.expiration)) {
		token, expiration, err := m.provider(ctx)
		if err != nil {
			return dbtype.Token{}, err
		}
		m.token = &token
		m.expiration = expiration
	}
	return *m.token, nil
}

func (m *refreshingManager) HandleSecurityException(ctx context.Context, token dbtype.Token, err *dbtype.Neo4jError) (bool, error) {
	if !m.retriableCode(err.Code) {
		return false, nil
	}
	if !m.mutex.TryLock(ctx) {
		return false, racing.LockTimeoutError("timed out acquiring auth token lock")
	}
	defer m.mutex.Unlock()
	if m.token != nil && reflect.DeepEqual(token.Tokens, m.token.Tokens) {
		m.token = nil
	}
	return true, nil
}

// BasicManager rotates a basic-auth token by calling provider only when the
// server rejects the current one as Unauthorized.
func BasicManager(provider func(context.Context) (dbtype.Token, error)) dbtype.TokenManager {
	return &refreshingManager{
		provider: func(ctx context.Context) (dbtype.Token, *time.Time, error) {
			t, err := provider(ctx)
			return t, nil, err
		},
		mutex: racing.NewMutex(),
		retriableCode: func(code string) bool {
			return code == "Neo.ClientError.Security.Unauthorized"
		},
	}
}

// BearerManager rotates a possibly-expiring bearer token, refreshing either
// when it reports an expiration that has passed or when the server flags
// it as expired or unauthorized.
func BearerManager(provider func(context.Context) (dbtype.Token, *time.Time, error)) dbtype.TokenManager {
	return &refreshingManager{
		provider: provider,
		mutex:    racing.NewMutex(),
		retriableCode: func(code string) bool {
			return code == "Neo.ClientError.Security.TokenExpired" || code == "Neo.ClientError.Security.Unauthorized"
		},
	}
}
