// Package steps contains the reconciliation pipeline steps.
// Each step implements the pipeline.Step interface.
package steps

import (
	"regexp"
	"strings"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/review"
)

// isPullRequestInDraft reports whether the PR is a native draft or a faux
// draft (title marker).
func isPullRequestInDraft(pr *pipeline.PullRequest) bool {
	return pr.Draft || review.IsDraftTitle(pr.Title)
}

// appendUnique appends the ids not already present, preserving
// first-discovered order.
func appendUnique(ids []string, more ...string) []string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range more {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

var branchCategoryRe = regexp.MustCompile(`^([^/]*)/`)

// branchCategory returns the first path segment of a branch name
// ("feature/42-foo" -> "feature"), or "" when the branch has no category.
func branchCategory(branchName string) string {
	matches := branchCategoryRe.FindStringSubmatch(branchName)
	if matches == nil || matches[1] == "" {
		return ""
	}
	return matches[1]
}

// resolveListTarget resolves a configured list-id string against the PR's
// merge-target branch.
//
// A value without ":" is a literal (possibly ";"-joined fallback) list id
// and is returned as-is. A value with any ":" line is an ordered
// "pattern:listId" map with glob-style "*" wildcards; the first pattern
// matching the branch wins and a literal "*" line is the catch-all. No match
// and no catch-all resolves to "" (the move is skipped).
func resolveListTarget(raw, baseBranch string) string {
	if !strings.Contains(raw, ":") {
		return raw
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pattern, listID, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		pattern = strings.TrimSpace(pattern)
		listID = strings.TrimSpace(listID)
		if pattern == "" || listID == "" {
			continue
		}
		if globMatch(pattern, baseBranch) {
			return listID
		}
	}
	return ""
}

// globMatch matches a "*" wildcard pattern via escaped-regex translation.
func globMatch(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `.*`) + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
