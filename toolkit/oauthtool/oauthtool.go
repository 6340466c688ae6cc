// Package oauthtool lets a tool invocation request user authorization
// mid-run: it drives an OAuth2 authorization-code flow through the
// interactor's OAuthRequest/OAuthCallback events and issues a signed JWT
// once the flow completes, so subsequent calls to the same tool can
// short-circuit the browser round trip.
package oauthtool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/loomrun/loom/internal/interactor"
	"github.com/loomrun/loom/pkg/events"
)

var (
	ErrUnknownProvider = errors.New("oauthtool: unknown provider")
	ErrInvalidToken    = errors.New("oauthtool: invalid token")
)

// Identity is the user identity embedded in an issued session token.
type Identity struct {
	Subject  string
	Provider string
	Email    string
}

// sessionClaims wraps Identity in the JWT's registered claims.
type sessionClaims struct {
	Provider string `json:"provider,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager coordinates one or more OAuth2 providers and mints/validates
// session JWTs for completed flows.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]*oauth2.Config
	secret    []byte
	expiry    time.Duration

	pending map[string]chan oauth2.Token // state -> callback delivery
}

// New builds a Manager. secret signs issued session tokens; expiry of
// zero means tokens never expire.
func New(secret string, expiry time.Duration) *Manager {
	return &Manager{
		providers: make(map[string]*oauth2.Config),
		secret:    []byte(secret),
		expiry:    expiry,
		pending:   make(map[string]chan oauth2.Token),
	}
}

// RegisterProvider adds (or replaces) a named OAuth2 provider config.
func (m *Manager) RegisterProvider(name string, cfg *oauth2.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[strings.ToLower(name)] = cfg
}

// RequestAuthorization publishes an OAuthRequest event carrying the
// provider's consent URL and blocks until a matching OAuthCallback event
// arrives (delivered via Resolve) or ctx is cancelled.
func (m *Manager) RequestAuthorization(ctx context.Context, ia interactor.Interactor, provider, state string) (*oauth2.Token, error) {
	m.mu.RLock()
	cfg, ok := m.providers[strings.ToLower(provider)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownProvider
	}

	ch := make(chan oauth2.Token, 1)
	m.mu.Lock()
	m.pending[state] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, state)
		m.mu.Unlock()
	}()

	ia.SendEvent(events.Event{Kind: events.KindOAuthRequest, OAuth: &events.OAuthPayload{
		URL:   cfg.AuthCodeURL(state, oauth2.AccessTypeOffline),
		State: state,
	}})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tok := <-ch:
		return &tok, nil
	}
}

// Resolve completes a pending RequestAuthorization call for state by
// exchanging code for a token. It is the counterpart to an inbound
// OAuthCallback event.
func (m *Manager) Resolve(ctx context.Context, provider, state, code string) error {
	m.mu.RLock()
	cfg, ok := m.providers[strings.ToLower(provider)]
	ch, pending := m.pending[state]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownProvider
	}
	if !pending {
		return fmt.Errorf("oauthtool: no pending authorization for state %q", state)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("oauthtool: exchange: %w", err)
	}
	ch <- *tok
	return nil
}

// IssueSessionToken signs a JWT embedding identity, independent of the
// provider's own access token, so the core can recognize a returning
// user without repeating the OAuth dance.
func (m *Manager) IssueSessionToken(identity Identity) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("oauthtool: signing secret not configured")
	}
	claims := sessionClaims{
		Provider: identity.Provider,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity.Subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if m.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(m.expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateSessionToken parses and verifies a session token minted by
// IssueSessionToken.
func (m *Manager) ValidateSessionToken(token string) (Identity, error) {
	if len(m.secret) == 0 {
		return Identity{}, errors.New("oauthtool: signing secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: claims.Subject, Provider: claims.Provider, Email: claims.Email}, nil
}
