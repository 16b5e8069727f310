package github

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEvent(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write event file: %v", err)
	}
	return path
}

func TestLoadEventPullRequest(t *testing.T) {
	path := writeEvent(t, `{
		"action": "opened",
		"pull_request": {"number": 42},
		"repository": {
			"name": "widgets",
			"full_name": "acme/widgets",
			"owner": {"login": "acme"}
		}
	}`)

	event, err := LoadEvent(path)
	if err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}

	if event.Action != "opened" {
		t.Errorf("expected action opened, got %q", event.Action)
	}
	if event.Number() != 42 {
		t.Errorf("expected number 42, got %d", event.Number())
	}
	if event.Owner() != "acme" {
		t.Errorf("expected owner acme, got %q", event.Owner())
	}
	if event.Repo() != "widgets" {
		t.Errorf("expected repo widgets, got %q", event.Repo())
	}
}

func TestLoadEventIssueCommentPayload(t *testing.T) {
	path := writeEvent(t, `{
		"action": "created",
		"issue": {"number": 7},
		"repository": {"full_name": "acme/widgets"}
	}`)

	event, err := LoadEvent(path)
	if err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}

	if event.Number() != 7 {
		t.Errorf("expected issue number 7, got %d", event.Number())
	}
	// Sparse payload: owner and repo come from the full name.
	if event.Owner() != "acme" || event.Repo() != "widgets" {
		t.Errorf("expected acme/widgets from full name, got %q/%q", event.Owner(), event.Repo())
	}
}

func TestLoadEventPrefersOrganizationLogin(t *testing.T) {
	path := writeEvent(t, `{
		"action": "opened",
		"pull_request": {"number": 1},
		"repository": {"owner": {"login": "someone"}},
		"organization": {"login": "acme-org"}
	}`)

	event, err := LoadEvent(path)
	if err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if event.Owner() != "acme-org" {
		t.Errorf("expected organization login, got %q", event.Owner())
	}
}

func TestLoadEventFromEnvPath(t *testing.T) {
	path := writeEvent(t, `{"action": "closed", "pull_request": {"number": 3}}`)
	t.Setenv("GITHUB_EVENT_PATH", path)

	event, err := LoadEvent("")
	if err != nil {
		t.Fatalf("LoadEvent failed: %v", err)
	}
	if event.Action != "closed" || event.Number() != 3 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestLoadEventMissing(t *testing.T) {
	t.Setenv("GITHUB_EVENT_PATH", "")
	if _, err := LoadEvent(""); err == nil {
		t.Error("expected error when no event path is available")
	}

	if _, err := LoadEvent("/nonexistent/event.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
