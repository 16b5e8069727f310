// Package review evaluates pull request review state and draft-ness.
package review

import (
	"regexp"

	"github.com/trellosync/trellosync/internal/integrations/github"
)

// Treat PRs with "draft" or "wip" in brackets at the start or end of the
// title like drafts. Useful for orgs on plans without native PR drafts.
var fauxDraftRe = regexp.MustCompile(`(?i)^(?:\s*[\[(](?:wip|draft)[\])]\s+)|(?:\s+[\[(](?:wip|draft)[\])]\s*)$`)

// IsDraftTitle reports whether a PR title carries a faux-draft marker.
func IsDraftTitle(title string) bool {
	return fauxDraftRe.MatchString(title)
}

// ActiveReviews returns the reviews that still represent a reviewer's
// standing opinion: pending reviews are dropped, only the latest review per
// reviewer is kept, and reviewers whose review has been re-requested are
// excluded (their old verdict no longer counts).
func ActiveReviews(reviews []github.Review, requested []github.User) []github.Review {
	latestByUser := make(map[int64]int) // user id -> index into latest
	var latest []github.Review

	for _, r := range reviews {
		if r.State == "PENDING" {
			continue
		}
		if i, ok := latestByUser[r.User.ID]; ok {
			latest[i] = r
			continue
		}
		latestByUser[r.User.ID] = len(latest)
		latest = append(latest, r)
	}

	rerequested := make(map[int64]bool, len(requested))
	for _, u := range requested {
		rerequested[u.ID] = true
	}

	active := latest[:0]
	for _, r := range latest {
		if !rerequested[r.User.ID] {
			active = append(active, r)
		}
	}
	return active
}

// IsChangesRequested reports whether any active review requests changes.
func IsChangesRequested(reviews []github.Review, requested []github.User) bool {
	return hasActiveState(reviews, requested, "CHANGES_REQUESTED")
}

// IsApproved reports whether any active review approves.
func IsApproved(reviews []github.Review, requested []github.User) bool {
	return hasActiveState(reviews, requested, "APPROVED")
}

func hasActiveState(reviews []github.Review, requested []github.User, state string) bool {
	for _, r := range ActiveReviews(reviews, requested) {
		if r.State == state {
			return true
		}
	}
	return false
}
