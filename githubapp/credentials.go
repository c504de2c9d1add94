/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v75/github"
)

const (
	// jwtLifetime is how long an app assertion is valid.
	jwtLifetime = 600 * time.Second

	// refreshMargin is how long before expiry a cached token is replaced.
	refreshMargin = 30 * time.Second
)

// Token is an installation access token.
type Token struct {
	InstallationID int64
	Value          string
	ExpiresAt      time.Time
}

// TokenStore holds installation tokens. Implementations need not be safe
// for concurrent use: the CredentialManager serializes access.
type TokenStore interface {
	Get(installationID int64) (Token, bool)
	Put(token Token)
}

// MemoryStore is a TokenStore backed by a map.
type MemoryStore map[int64]Token

func (m MemoryStore) Get(id int64) (Token, bool) {
	t, ok := m[id]
	return t, ok
}

func (m MemoryStore) Put(t Token) { m[t.InstallationID] = t }

// CredentialManager authenticates as a GitHub App and mints installation
// tokens.
type CredentialManager struct {
	appID     int64
	key       *rsa.PrivateKey
	transport http.RoundTripper
	baseURL   *url.URL
	now       func() time.Time

	mu    sync.Mutex
	store TokenStore
}

// Option configures a CredentialManager.
type Option func(*CredentialManager) error

// WithTransport sets the transport app-authenticated requests go through,
// normally a ratelimit.Transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *CredentialManager) error {
		if rt == nil {
			return errors.New("transport cannot be nil")
		}
		c.transport = rt
		return nil
	}
}

// WithBaseURL points the manager at a GitHub Enterprise or test API root.
func WithBaseURL(raw string) Option {
	return func(c *CredentialManager) error {
		u, err := parseBaseURL(raw)
		if err != nil {
			return err
		}
		c.baseURL = u
		return nil
	}
}

// WithTokenStore replaces the in-memory token store.
func WithTokenStore(s TokenStore) Option {
	return func(c *CredentialManager) error {
		if s == nil {
			return errors.New("token store cannot be nil")
		}
		c.store = s
		return nil
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *CredentialManager) error {
		c.now = now
		return nil
	}
}

// NewCredentialManager creates a manager for the app with the PEM encoded
// RSA private key.
func NewCredentialManager(appID int64, privateKeyPEM []byte, opts ...Option) (*CredentialManager, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("invalid app ID %d", appID)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	c := &CredentialManager{
		appID:     appID,
		key:       key,
		transport: http.DefaultTransport,
		now:       time.Now,
		store:     MemoryStore{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return c, nil
}

// AppID returns the app's numeric ID.
func (c *CredentialManager) AppID() int64 { return c.appID }

// JWT signs a fresh app assertion.
func (c *CredentialManager) JWT() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(c.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}

// appClient returns a client that authenticates as the app itself.
func (c *CredentialManager) appClient() *github.Client {
	client := github.NewClient(&http.Client{Transport: &jwtTransport{base: c.transport, sign: c.JWT}})
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

// InstallationID looks up the app installation for a repository. The result
// is not cached.
func (c *CredentialManager) InstallationID(ctx context.Context, owner, repo string) (int64, error) {
	inst, resp, err := c.appClient().Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return 0, &AuthError{
			Operation:  fmt.Sprintf("find installation for %s/%s", owner, repo),
			StatusCode: statusCode(resp, err),
			Err:        err,
		}
	}
	if inst.GetID() == 0 {
		return 0, &AuthError{
			Operation: fmt.Sprintf("find installation for %s/%s", owner, repo),
			Err:       errors.New("app is not installed"),
		}
	}
	return inst.GetID(), nil
}

// Token returns an installation token valid for at least the refresh margin,
// minting a new one when the cached token is missing or about to expire.
func (c *CredentialManager) Token(ctx context.Context, installationID int64) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.store.Get(installationID); ok && c.now().Add(refreshMargin).Before(t.ExpiresAt) {
		return t, nil
	}

	minted, resp, err := c.appClient().Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return Token{}, &AuthError{
			Operation:  fmt.Sprintf("create token for installation %d", installationID),
			StatusCode: statusCode(resp, err),
			Err:        err,
		}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Token{}, &AuthError{
			Operation:  fmt.Sprintf("create token for installation %d", installationID),
			StatusCode: resp.StatusCode,
			Err:        errors.New("unexpected status"),
		}
	}

	t := Token{
		InstallationID: installationID,
		Value:          minted.GetToken(),
		ExpiresAt:      minted.GetExpiresAt().Time,
	}
	c.store.Put(t)
	clog.FromContext(ctx).With("installation_id", installationID).
		With("expires_at", t.ExpiresAt).
		Debug("Minted installation token")
	return t, nil
}

// NormalizePrivateKey accepts a PEM key as it arrives from the environment,
// with literal "\n" sequences and stray indentation, and returns clean PEM.
func NormalizePrivateKey(raw string) []byte {
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub API URL: %w", err)
	}
	return u, nil
}
