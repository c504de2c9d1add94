/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// InstallationClient returns a go-github client that authenticates as the
// installation. Bearer tokens come from the manager's cache and requests go
// through the manager's transport.
func (c *CredentialManager) InstallationClient(ctx context.Context, installationID int64) *github.Client {
	hc := &http.Client{
		Transport: &oauth2.Transport{
			Source: c.TokenSource(ctx, installationID),
			Base:   c.transport,
		},
	}
	client := github.NewClient(hc)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

// TokenSourceForRepo resolves the installation for owner/repo and returns
// a token source for it.
func (c *CredentialManager) TokenSourceForRepo(ctx context.Context, owner, repo string) (oauth2.TokenSource, error) {
	id, err := c.InstallationID(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return c.TokenSource(ctx, id), nil
}

// Client performs repository and issue operations on behalf of whichever
// installation covers the repository being addressed.
type Client struct {
	creds *CredentialManager
}

// NewClient wraps a CredentialManager.
func NewClient(creds *CredentialManager) *Client {
	return &Client{creds: creds}
}

// forRepo looks up the installation for owner/repo and returns a client for it.
func (c *Client) forRepo(ctx context.Context, owner, repo string) (*github.Client, error) {
	id, err := c.creds.InstallationID(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("resolve installation: %w", err)
	}
	return c.creds.InstallationClient(ctx, id), nil
}
