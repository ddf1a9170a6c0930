// Package auth keeps the API access token valid, refreshing it with the
// long-lived refresh token when it is expired or about to expire.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/claude/stravasummary/internal/models"
)

var (
	// ErrRefreshFailed is a transient refresh failure (network, 5xx, 429).
	// Callers may retry the run; the manager does not retry internally.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrRevoked means the token endpoint rejected the refresh token.
	// The authorization-code exchange must be repeated out of band.
	ErrRevoked = errors.New("refresh token rejected")
	// ErrPersist means a refreshed credential could not be stored. The new
	// credential is discarded so it is never used without being durable.
	ErrPersist = errors.New("persisting refreshed credential failed")
	// ErrNoCredential is returned by stores that hold nothing yet.
	ErrNoCredential = errors.New("no stored credential")
)

// Store persists a credential between runs.
type Store interface {
	Load(ctx context.Context) (models.Credential, error)
	Save(ctx context.Context, cred models.Credential) error
}

// State is the refresh lifecycle of a Manager.
type State int

const (
	StateValid State = iota
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultMargin is how long before expiry a token is treated as expired.
const DefaultMargin = 60 * time.Second

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	TokenURL   string
	Margin     time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Manager owns the current credential. Every outbound request should call
// EnsureValid (or AccessToken) first.
type Manager struct {
	mu    sync.Mutex
	cred  models.Credential
	state State

	store      Store
	tokenURL   string
	margin     time.Duration
	httpClient *http.Client
	now        func() time.Time
	log        *slog.Logger
}

// NewManager creates a Manager holding cred, persisting refreshes to store.
func NewManager(cred models.Credential, store Store, opts Options, log *slog.Logger) *Manager {
	m := &Manager{
		cred:       cred,
		store:      store,
		tokenURL:   opts.TokenURL,
		margin:     opts.Margin,
		httpClient: opts.HTTPClient,
		now:        opts.Now,
		log:        log,
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// NeedsRefresh reports whether cred must be refreshed before use at now.
// It has no side effects.
func NeedsRefresh(cred models.Credential, now time.Time, margin time.Duration) bool {
	if cred.AccessToken == "" {
		return true
	}
	return !now.Add(margin).Before(cred.Expiry())
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureValid returns a credential whose access token is valid for at least
// the safety margin. A still-valid credential is returned without any network
// call. Otherwise the token is refreshed, persisted, and only then swapped in.
func (m *Manager) EnsureValid(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !NeedsRefresh(m.cred, m.now(), m.margin) {
		return m.cred, nil
	}

	m.log.Info("access token expired or about to expire, refreshing",
		"expires_at", m.cred.Expiry().UTC().Format(time.RFC3339))
	m.state = StateRefreshing

	next, err := m.refresh(ctx, m.cred)
	if err != nil {
		m.state = StateFailed
		return models.Credential{}, err
	}
	if err := m.store.Save(ctx, next); err != nil {
		m.state = StateFailed
		return models.Credential{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	m.cred = next
	m.state = StateValid
	m.log.Info("access token refreshed",
		"expires_at", next.Expiry().UTC().Format(time.RFC3339))
	return next, nil
}

// AccessToken returns a currently-valid bearer token.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	cred, err := m.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// refresh performs the refresh_token grant. client_id and client_secret are
// sent in the form body.
func (m *Manager) refresh(ctx context.Context, cur models.Credential) (models.Credential, error) {
	conf := &oauth2.Config{
		ClientID:     cur.ClientID,
		ClientSecret: cur.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken}).Token()
	if err != nil {
		return models.Credential{}, m.classify(err)
	}

	next := models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt(tok),
		TokenType:    tok.TokenType,
		ClientID:     cur.ClientID,
		ClientSecret: cur.ClientSecret,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.TokenType == "" {
		next.TokenType = cur.TokenType
	}
	if next.ExpiresAt == 0 {
		return models.Credential{}, fmt.Errorf("%w: POST %s: response carries no expiry", ErrRefreshFailed, m.tokenURL)
	}
	return next, nil
}

// expiresAt prefers the absolute expires_at the service returns over the
// relative expires_in that oauth2 converts to Expiry.
func expiresAt(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_at").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Unix()
	}
	return 0
}

func (m *Manager) classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status := rerr.Response.StatusCode
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return fmt.Errorf("%w: POST %s returned %d: %s", ErrRefreshFailed, m.tokenURL, status, rerr.Body)
		}
		return fmt.Errorf("%w: POST %s returned %d: %s", ErrRevoked, m.tokenURL, status, rerr.Body)
	}
	return fmt.Errorf("%w: POST %s: %v", ErrRefreshFailed, m.tokenURL, err)
}

// Pick chooses between the stored credential and the one seeded from
// configuration. The stored copy wins when it carries a refresh token and an
// expiry no earlier than the seed's; client id and secret always come from
// the seed.
func Pick(stored, seed models.Credential) models.Credential {
	if stored.RefreshToken == "" || stored.ExpiresAt < seed.ExpiresAt {
		return seed
	}
	stored.ClientID = seed.ClientID
	stored.ClientSecret = seed.ClientSecret
	if stored.TokenType == "" {
		stored.TokenType = seed.TokenType
	}
	return stored
}
