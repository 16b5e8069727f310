// Package github wraps the GitHub API for a single pull request.
package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"
)

// API is the surface of the GitHub client consumed by pipeline steps.
type API interface {
	// PullRequest fetches a fresh snapshot of the pull request. The webhook
	// payload can be stale by the time the job runs, so steps that care
	// about the live state re-fetch through this.
	PullRequest(ctx context.Context) (*PullRequest, error)
	ListComments(ctx context.Context) ([]Comment, error)
	ListCommits(ctx context.Context) ([]Commit, error)
	ListReviews(ctx context.Context) ([]Review, error)
	ListRequestedReviewers(ctx context.Context) ([]User, error)
	IsMerged(ctx context.Context) (bool, error)
	CreateComment(ctx context.Context, body string) error
	UpdateBody(ctx context.Context, body string) error
	AddLabels(ctx context.Context, labels []string) error
	ListPRLabels(ctx context.Context) ([]string, error)
	ListRepoLabels(ctx context.Context) ([]string, error)
}

// Client wraps the GitHub API client for one pull request.
type Client struct {
	client *github.Client
	owner  string
	repo   string
	number int
}

var _ API = (*Client)(nil)

// PullRequest fetches the live pull request.
func (c *Client) PullRequest(ctx context.Context) (*PullRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, c.number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", err)
	}

	assignees := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		if login := a.GetLogin(); login != "" {
			assignees = append(assignees, login)
		}
	}

	return &PullRequest{
		Number:    pr.GetNumber(),
		State:     pr.GetState(),
		Draft:     pr.GetDraft(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		HeadRef:   pr.GetHead().GetRef(),
		BaseRef:   pr.GetBase().GetRef(),
		Author:    pr.GetUser().GetLogin(),
		Assignees: assignees,
		URL:       pr.GetHTMLURL(),
	}, nil
}

// ListComments returns the issue comments on the pull request.
func (c *Client) ListComments(ctx context.Context) ([]Comment, error) {
	raw, _, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, c.number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	comments := make([]Comment, 0, len(raw))
	for _, comment := range raw {
		comments = append(comments, Comment{Body: comment.GetBody()})
	}
	return comments, nil
}

// ListCommits returns the commits of the pull request.
func (c *Client) ListCommits(ctx context.Context) ([]Commit, error) {
	raw, _, err := c.client.PullRequests.ListCommits(ctx, c.owner, c.repo, c.number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	commits := make([]Commit, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, Commit{
			Message:        rc.GetCommit().GetMessage(),
			AuthorLogin:    rc.GetAuthor().GetLogin(),
			CommitterLogin: rc.GetCommitter().GetLogin(),
		})
	}
	return commits, nil
}

// ListReviews returns all reviews submitted on the pull request.
func (c *Client) ListReviews(ctx context.Context) ([]Review, error) {
	raw, _, err := c.client.PullRequests.ListReviews(ctx, c.owner, c.repo, c.number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	reviews := make([]Review, 0, len(raw))
	for _, r := range raw {
		reviews = append(reviews, Review{
			User:  User{ID: r.GetUser().GetID(), Login: r.GetUser().GetLogin()},
			State: r.GetState(),
		})
	}
	return reviews, nil
}

// ListRequestedReviewers returns the users whose review is currently requested.
func (c *Client) ListRequestedReviewers(ctx context.Context) ([]User, error) {
	raw, _, err := c.client.PullRequests.ListReviewers(ctx, c.owner, c.repo, c.number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list requested reviewers: %w", err)
	}

	users := make([]User, 0, len(raw.Users))
	for _, u := range raw.Users {
		users = append(users, User{ID: u.GetID(), Login: u.GetLogin()})
	}
	return users, nil
}

// IsMerged reports whether the pull request has been merged.
func (c *Client) IsMerged(ctx context.Context) (bool, error) {
	merged, _, err := c.client.PullRequests.IsMerged(ctx, c.owner, c.repo, c.number)
	if err != nil {
		return false, fmt.Errorf("failed to check merged status: %w", err)
	}
	return merged, nil
}

// CreateComment posts a comment on the pull request.
func (c *Client) CreateComment(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("comment body cannot be empty")
	}

	comment := &github.IssueComment{
		Body: github.String(body),
	}
	_, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, c.number, comment)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// UpdateBody rewrites the pull request description.
func (c *Client) UpdateBody(ctx context.Context, body string) error {
	_, _, err := c.client.Issues.Edit(ctx, c.owner, c.repo, c.number, &github.IssueRequest{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to update body: %w", err)
	}
	return nil
}

// AddLabels adds labels to the pull request.
func (c *Client) AddLabels(ctx context.Context, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("labels cannot be empty")
	}

	_, _, err := c.client.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, c.number, labels)
	if err != nil {
		return fmt.Errorf("failed to add labels: %w", err)
	}
	return nil
}

// ListPRLabels returns the label names currently on the pull request.
func (c *Client) ListPRLabels(ctx context.Context) ([]string, error) {
	raw, _, err := c.client.Issues.ListLabelsByIssue(ctx, c.owner, c.repo, c.number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list PR labels: %w", err)
	}
	return labelNames(raw), nil
}

// ListRepoLabels returns the label names defined in the repository.
func (c *Client) ListRepoLabels(ctx context.Context) ([]string, error) {
	raw, _, err := c.client.Issues.ListLabels(ctx, c.owner, c.repo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list repo labels: %w", err)
	}
	return labelNames(raw), nil
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if name := l.GetName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}
