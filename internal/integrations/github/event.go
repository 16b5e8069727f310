package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Event is the slice of the webhook payload the dispatcher needs: which PR
// in which repository, and what happened to it. Everything else is
// re-fetched live.
type Event struct {
	Action string `json:"action"`

	PullRequest *struct {
		Number int `json:"number"`
	} `json:"pull_request"`

	Issue *struct {
		Number int `json:"number"`
	} `json:"issue"`

	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`

	Organization *struct {
		Login string `json:"login"`
	} `json:"organization"`
}

// LoadEvent reads the webhook payload from path. When path is empty, the
// GITHUB_EVENT_PATH environment variable is used (the Actions runner
// convention).
func LoadEvent(path string) (*Event, error) {
	if path == "" {
		path = os.Getenv("GITHUB_EVENT_PATH")
	}
	if path == "" {
		return nil, fmt.Errorf("no event payload: GITHUB_EVENT_PATH is not set")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return &event, nil
}

// Number returns the pull request (or issue) number the event refers to.
func (e *Event) Number() int {
	if e.PullRequest != nil {
		return e.PullRequest.Number
	}
	if e.Issue != nil {
		return e.Issue.Number
	}
	return 0
}

// Owner returns the repository owner, preferring the organization login.
func (e *Event) Owner() string {
	if e.Organization != nil && e.Organization.Login != "" {
		return e.Organization.Login
	}
	if e.Repository.Owner.Login != "" {
		return e.Repository.Owner.Login
	}
	// Fall back to the full name prefix for sparse payloads.
	if owner, _, ok := strings.Cut(e.Repository.FullName, "/"); ok {
		return owner
	}
	return ""
}

// Repo returns the repository name.
func (e *Event) Repo() string {
	if e.Repository.Name != "" {
		return e.Repository.Name
	}
	if _, repo, ok := strings.Cut(e.Repository.FullName, "/"); ok {
		return repo
	}
	return ""
}
