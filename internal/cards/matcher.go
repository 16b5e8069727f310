// Package cards resolves Trello card identifiers from the signals a pull
// request carries: free text (descriptions, comments, commit messages) and
// the branch name.
package cards

import (
	"regexp"
	"strings"

	"github.com/trellosync/trellosync/internal/core/config"
)

const cardURLPattern = `https://trello\.com/c/(\w+)(?:/[^\s,]*)?`

var (
	// A comma-separated run of card URLs counts as one match group, so a
	// single closing keyword can cover several cards.
	cardURLGroupRe        = regexp.MustCompile(`(?i)` + cardURLPattern + `(?:\s*,\s*` + cardURLPattern + `)*`)
	keywordCardURLGroupRe = regexp.MustCompile(`(?i)(?:close|closes|closed|fix|fixes|fixed|resolve|resolves|resolved)\s+` + cardURLPattern + `(?:\s*,\s*` + cardURLPattern + `)*`)

	cardURLRe = regexp.MustCompile(`(?i)` + cardURLPattern)

	// Lines carrying these keywords mention cards without linking intent
	// ("see also"), so the whole line is rejected.
	relatedKeywordRe = regexp.MustCompile(`(?i)\b(?:related|relates|related to|relates to)\b`)
)

// MatchCardIDs extracts card identifiers from free text. Pure function, no
// I/O. Returns de-duplicated ids preserving first-seen order; empty input
// yields nil.
func MatchCardIDs(conf *config.Config, text string) []string {
	if text == "" {
		return nil
	}

	groupRe := cardURLGroupRe
	if conf.RequireKeywordPrefix {
		groupRe = keywordCardURLGroupRe
	}

	var ids []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		if conf.EnableRelatedKeywordPrefix && relatedKeywordRe.MatchString(line) {
			continue
		}
		for _, group := range groupRe.FindAllString(line, -1) {
			for _, url := range cardURLRe.FindAllStringSubmatch(group, -1) {
				if id := url[1]; id != "" && !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}

	return ids
}
