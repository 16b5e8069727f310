package trello

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the semantic classification of a rejected Trello request.
// Upper layers branch on the kind, never on the provider's error prose.
type ErrorKind int

const (
	// KindUnknown is any rejection the client does not recognize. It fails the run.
	KindUnknown ErrorKind = iota

	// KindAlreadyPresent means the label or member is already on the card.
	KindAlreadyPresent

	// KindAlreadyAbsent means the member is not on the card.
	KindAlreadyAbsent

	// KindMovedConcurrently means the card moved to a different board while
	// this run was working on it.
	KindMovedConcurrently
)

// APIError is a non-2xx response from the Trello API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
	Kind       ErrorKind
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// classifyError maps known provider error bodies to semantic kinds.
// The body texts are stable, documented behaviors of the Trello API.
func classifyError(body string) ErrorKind {
	msg := strings.ToLower(strings.TrimSpace(body))

	switch {
	case strings.Contains(msg, "already on the card"):
		return KindAlreadyPresent
	case strings.Contains(msg, "is not on the card"):
		return KindAlreadyAbsent
	case strings.Contains(msg, "different board"):
		return KindMovedConcurrently
	default:
		return KindUnknown
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return KindUnknown, false
}

// IsAlreadyPresent reports whether err is an "already on the card" rejection.
func IsAlreadyPresent(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAlreadyPresent
}

// IsAlreadyAbsent reports whether err is a "not on the card" rejection.
func IsAlreadyAbsent(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAlreadyAbsent
}

// IsMovedConcurrently reports whether err means the card changed boards
// under a concurrent actor.
func IsMovedConcurrently(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindMovedConcurrently
}

// IsBenignRace reports whether err is a race this system tolerates: two runs
// for the same PR applying the same add/remove, which leaves the board in
// the desired state anyway.
func IsBenignRace(err error) bool {
	kind, ok := kindOf(err)
	return ok && (kind == KindAlreadyPresent || kind == KindAlreadyAbsent)
}
