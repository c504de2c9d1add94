/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubapp authenticates as a GitHub App and performs the issue
// and repository operations the agent needs.
//
// A CredentialManager signs app assertions with the app's RSA key, resolves
// the installation covering a repository and caches installation tokens
// until they come within 30 seconds of expiry. All traffic goes through the
// transport passed with WithTransport, normally a ratelimit.Transport:
//
//	creds, err := githubapp.NewCredentialManager(appID, key,
//		githubapp.WithTransport(ratelimit.New(http.DefaultTransport)))
//	client := githubapp.NewClient(creds)
//	issue, err := client.GetIssue(ctx, ref)
package githubapp
