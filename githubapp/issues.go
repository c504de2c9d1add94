/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// IssueReference identifies a single issue.
type IssueReference struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"issue_num"`
}

func (r IssueReference) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseIssueURL parses https://github.com/{owner}/{repo}/issues/{number}.
// Trailing slashes and any host are accepted.
func ParseIssueURL(raw string) (IssueReference, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return IssueReference{}, &InvalidReferenceError{URL: raw}
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "issues" || parts[0] == "" || parts[1] == "" {
		return IssueReference{}, &InvalidReferenceError{URL: raw}
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return IssueReference{}, &InvalidReferenceError{URL: raw}
	}
	return IssueReference{Owner: parts[0], Repo: parts[1], Number: n}, nil
}

// GetIssue fetches an issue.
func (c *Client) GetIssue(ctx context.Context, ref IssueReference) (*github.Issue, error) {
	gh, err := c.forRepo(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return nil, err
	}
	issue, _, err := gh.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", ref, err)
	}
	return issue, nil
}

// PostComment creates a comment on the issue. Anything but 201 Created is
// an error.
func (c *Client) PostComment(ctx context.Context, ref IssueReference, body string) (*github.IssueComment, error) {
	gh, err := c.forRepo(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return nil, err
	}
	comment, resp, err := gh.Issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("comment on %s: %w", ref, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, &StatusError{
			Operation:  fmt.Sprintf("comment on %s", ref),
			StatusCode: resp.StatusCode,
		}
	}
	clog.FromContext(ctx).With("issue", ref.String()).
		With("comment_id", comment.GetID()).
		Info("Posted comment")
	return comment, nil
}

// ListFiles returns the path of every blob in the tree at ref.
func (c *Client) ListFiles(ctx context.Context, owner, repo, ref string) ([]string, error) {
	gh, err := c.forRepo(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	tree, _, err := gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("list tree %s/%s@%s: %w", owner, repo, ref, err)
	}
	if tree.GetTruncated() {
		clog.FromContext(ctx).With("repository", owner+"/"+repo).
			With("ref", ref).
			Warn("Tree listing was truncated")
	}
	paths := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			paths = append(paths, e.GetPath())
		}
	}
	return paths, nil
}

// FileContent returns the decoded content of a file at ref.
func (c *Client) FileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	gh, err := c.forRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	file, _, _, err := gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("get contents of %s: %w", path, err)
	}
	if file == nil {
		return "", errors.New(path + " is a directory")
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return content, nil
}
