package cards

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// Searcher is the slice of the Trello API the branch resolver needs.
type Searcher interface {
	SearchCards(ctx context.Context, query, boardID string) ([]trello.Card, error)
	Card(ctx context.Context, cardID string) (*trello.Card, error)
	CardActions(ctx context.Context, cardID string) ([]trello.CardAction, error)
}

var (
	// e.g. "feature/42-17-api-rework" -> "42-17"
	multiShortIDRe = regexp.MustCompile(`(?:^|/)(\d+(?:-\d+)+)`)

	// e.g. "feature/42-api-rework" -> ("42-api-rework", "42", "api-rework")
	singleCardRe = regexp.MustCompile(`(?:^|/)((\d+)-(\S+))`)
)

// ResolveFromBranch derives card identifiers from a branch name through a
// staged, increasingly loose remote search.
//
// Numeric short ids are not globally unique and get reused after a card
// changes boards, so exact and title-qualified matches are preferred and a
// bare number is only trusted once every richer signal is exhausted.
func ResolveFromBranch(ctx context.Context, conf *config.Config, searcher Searcher, branchName string, knownCardIDs []string) ([]string, error) {
	slog.Info("searching cards from branch name", "branch", branchName)

	if conf.AllowMultipleCardsInBranchName {
		ids, err := resolveMultiple(ctx, conf, searcher, branchName)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	matches := singleCardRe.FindStringSubmatch(branchName)
	if matches == nil {
		return nil, nil
	}
	fullMatch, shortID, title := matches[1], matches[2], matches[3]

	slog.Info("matched one potential card from branch name", "match", fullMatch)

	// Exact search for the full "shortId-title" text.
	exact, err := searcher.SearchCards(ctx, fullMatch, "")
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return []string{cardID(exact[0])}, nil
	}

	// Make sure the card is not already linked before the wider, more
	// inaccurate searches. A card that changed its own short id after a
	// board move would otherwise get re-matched as a different card.
	linked, err := isAlreadyLinked(ctx, searcher, knownCardIDs, shortID)
	if err != nil {
		return nil, err
	}
	if linked {
		slog.Info("card mentioned in the branch name is already linked", "shortId", shortID)
		return nil, nil
	}

	// Try the title alone in case the short id changed with a move.
	byTitle, err := resolveByTitle(ctx, searcher, title, shortID)
	if err != nil {
		return nil, err
	}
	if byTitle != "" {
		slog.Info("found card by title", "title", title, "shortId", shortID)
		return []string{byTitle}, nil
	}

	// Last hope: the short id alone.
	byShortID, err := resolveByShortID(ctx, searcher, shortID, "")
	if err != nil {
		return nil, err
	}
	if byShortID != "" {
		slog.Info("found card by short id only", "shortId", shortID)
		return []string{byShortID}, nil
	}

	slog.Info("could not find a card matching the branch name", "branch", branchName)

	return nil, nil
}

// resolveMultiple handles branch names carrying a run of short ids
// ("42-17-api-rework"). Each number is looked up independently; the list is
// returned only when every id resolves, otherwise the single-card path takes
// over.
func resolveMultiple(ctx context.Context, conf *config.Config, searcher Searcher, branchName string) ([]string, error) {
	matches := multiShortIDRe.FindStringSubmatch(branchName)
	if matches == nil {
		return nil, nil
	}

	shortIDs := strings.Split(matches[1], "-")
	slog.Info("matched multiple potential short ids from branch name", "shortIds", shortIDs)

	ids := make([]string, 0, len(shortIDs))
	for _, shortID := range shortIDs {
		id, err := resolveByShortID(ctx, searcher, shortID, conf.TrelloBoardID)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, nil
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// isAlreadyLinked reports whether the numeric short id appears in the
// action/history log of any already-discovered card.
func isAlreadyLinked(ctx context.Context, searcher Searcher, cardIDs []string, shortID string) (bool, error) {
	n, err := strconv.Atoi(shortID)
	if err != nil {
		return false, fmt.Errorf("invalid short id %q: %w", shortID, err)
	}

	for _, id := range cardIDs {
		actions, err := searcher.CardActions(ctx, id)
		if err != nil {
			return false, err
		}
		for _, action := range actions {
			if action.Data.Card.IDShort == n {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolveByTitle searches by title and picks, among non-closed results sorted
// by most recent activity, the first card whose own short id or historical
// action log carries the queried short id. Covers cards renumbered by a
// board move.
func resolveByTitle(ctx context.Context, searcher Searcher, title, shortID string) (string, error) {
	n, err := strconv.Atoi(shortID)
	if err != nil {
		return "", fmt.Errorf("invalid short id %q: %w", shortID, err)
	}

	results, err := searcher.SearchCards(ctx, title, "")
	if err != nil {
		return "", err
	}

	for _, candidate := range activeByRecency(results) {
		card, err := searcher.Card(ctx, candidate.ID)
		if err != nil {
			return "", err
		}
		if card.IDShort == n {
			return cardID(*card), nil
		}

		actions, err := searcher.CardActions(ctx, candidate.ID)
		if err != nil {
			return "", err
		}
		for _, action := range actions {
			if action.Data.Card.IDShort == n {
				return cardID(*card), nil
			}
		}
	}
	return "", nil
}

// resolveByShortID searches by the bare number and requires an exact short-id
// match, so "1" cannot land on cards 10, 11, ... through substring search.
func resolveByShortID(ctx context.Context, searcher Searcher, shortID, boardID string) (string, error) {
	n, err := strconv.Atoi(shortID)
	if err != nil {
		return "", fmt.Errorf("invalid short id %q: %w", shortID, err)
	}

	results, err := searcher.SearchCards(ctx, shortID, boardID)
	if err != nil {
		return "", err
	}

	for _, card := range activeByRecency(results) {
		if card.IDShort == n {
			return cardID(card), nil
		}
	}
	return "", nil
}

// activeByRecency filters out closed cards and sorts by most recent activity.
func activeByRecency(cards []trello.Card) []trello.Card {
	active := make([]trello.Card, 0, len(cards))
	for _, card := range cards {
		if !card.Closed {
			active = append(active, card)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DateLastActivity.After(active[j].DateLastActivity)
	})
	return active
}

func cardID(card trello.Card) string {
	if card.ShortLink != "" {
		return card.ShortLink
	}
	return card.ID
}
