/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// jwtTransport signs every request with a fresh app assertion.
type jwtTransport struct {
	base http.RoundTripper
	sign func() (string, error)
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.sign()
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("Accept", "application/vnd.github+json")
	return t.base.RoundTrip(r)
}

// installationTokenSource serves tokens from the CredentialManager, which
// owns caching and refresh.
type installationTokenSource struct {
	ctx            context.Context
	creds          *CredentialManager
	installationID int64
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.creds.Token(s.ctx, s.installationID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: t.Value, TokenType: "Bearer", Expiry: t.ExpiresAt}, nil
}

// TokenSource returns an oauth2.TokenSource for one installation.
func (c *CredentialManager) TokenSource(ctx context.Context, installationID int64) oauth2.TokenSource {
	return &installationTokenSource{ctx: ctx, creds: c, installationID: installationID}
}
