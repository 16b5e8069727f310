package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// NewClient creates a GitHub client for one pull request, using the provided
// token. If token is empty, it returns an unauthenticated client.
// The client is bound to owner/repo/number at construction so that no step
// carries repository coordinates around.
func NewClient(ctx context.Context, token, owner, repo string, number int) *Client {
	var tc *http.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc = oauth2.NewClient(ctx, ts)
	}

	return &Client{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		number: number,
	}
}
