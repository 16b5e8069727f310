package cards

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// fakeSearcher serves canned search results keyed by query.
type fakeSearcher struct {
	searches map[string][]trello.Card
	cards    map[string]*trello.Card
	actions  map[string][]trello.CardAction
	queries  []string
}

func (f *fakeSearcher) SearchCards(_ context.Context, query, boardID string) ([]trello.Card, error) {
	f.queries = append(f.queries, query)
	return f.searches[query], nil
}

func (f *fakeSearcher) Card(_ context.Context, cardID string) (*trello.Card, error) {
	card, ok := f.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("unknown card %s", cardID)
	}
	return card, nil
}

func (f *fakeSearcher) CardActions(_ context.Context, cardID string) ([]trello.CardAction, error) {
	return f.actions[cardID], nil
}

func actionWithShortID(n int) trello.CardAction {
	var a trello.CardAction
	a.Data.Card.IDShort = n
	return a
}

func TestResolveFromBranchNoCardPattern(t *testing.T) {
	searcher := &fakeSearcher{}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "just-a-branch", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if ids != nil {
		t.Errorf("expected no ids for a branch without a card pattern, got %v", ids)
	}
	if len(searcher.queries) != 0 {
		t.Errorf("expected no remote searches, got %v", searcher.queries)
	}
}

func TestResolveFromBranchExactMatch(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"42-api-rework": {{ID: "card1", ShortLink: "sl42", IDShort: 42}},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-api-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"sl42"}) {
		t.Errorf("expected [sl42], got %v", ids)
	}
}

func TestResolveFromBranchFallsBackToFullID(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"7-cleanup": {{ID: "longid", IDShort: 7}},
		},
	}

	ids, err := ResolveFromBranch(context.Background(), &config.Config{}, searcher, "fix/7-cleanup", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"longid"}) {
		t.Errorf("expected fallback to full id, got %v", ids)
	}
}

func TestResolveFromBranchAlreadyLinked(t *testing.T) {
	searcher := &fakeSearcher{
		actions: map[string][]trello.CardAction{
			"known1": {actionWithShortID(42)},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-api-rework", []string{"known1"})
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if ids != nil {
		t.Errorf("expected no ids when the card is already linked, got %v", ids)
	}
}

func TestResolveFromBranchByTitle(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			// Exact search misses; the card was renumbered by a board move.
			"api-rework": {
				{ID: "stale", IDShort: 99, DateLastActivity: old},
				{ID: "moved", ShortLink: "slMoved", IDShort: 7, DateLastActivity: recent},
			},
		},
		cards: map[string]*trello.Card{
			"stale": {ID: "stale", IDShort: 99},
			"moved": {ID: "moved", ShortLink: "slMoved", IDShort: 7},
		},
		actions: map[string][]trello.CardAction{
			"moved": {actionWithShortID(42)},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-api-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"slMoved"}) {
		t.Errorf("expected [slMoved] via title search, got %v", ids)
	}
}

func TestResolveFromBranchTitleSkipsClosedCards(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"api-rework": {
				{ID: "closed", IDShort: 42, Closed: true},
			},
			"42": nil,
		},
		cards: map[string]*trello.Card{
			"closed": {ID: "closed", IDShort: 42, Closed: true},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-api-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if ids != nil {
		t.Errorf("closed cards must not resolve, got %v", ids)
	}
}

func TestResolveFromBranchByShortIDExactOnly(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			// Substring search for "1" also surfaces cards 10 and 11.
			"1": {
				{ID: "card10", IDShort: 10},
				{ID: "card11", IDShort: 11},
				{ID: "card1", ShortLink: "sl1", IDShort: 1},
			},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "fix/1-typo", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"sl1"}) {
		t.Errorf("expected exact short id match [sl1], got %v", ids)
	}
}

func TestResolveFromBranchMultipleShortIDs(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"42": {{ID: "card42", ShortLink: "sl42", IDShort: 42}},
			"17": {{ID: "card17", ShortLink: "sl17", IDShort: 17}},
		},
	}
	conf := &config.Config{AllowMultipleCardsInBranchName: true, TrelloBoardID: "board1"}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-17-api-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"sl42", "sl17"}) {
		t.Errorf("expected [sl42 sl17], got %v", ids)
	}
}

func TestResolveFromBranchMultiplePartialFallsBackToSingle(t *testing.T) {
	// The second short id does not resolve, so the multi path yields nothing
	// and the single-card path takes over with the first id.
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"42": {{ID: "card42", ShortLink: "sl42", IDShort: 42}},
			"17": nil,
		},
	}
	conf := &config.Config{AllowMultipleCardsInBranchName: true}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-17-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"sl42"}) {
		t.Errorf("expected single-card fallback [sl42], got %v", ids)
	}
}

func TestResolveFromBranchMultipleDisabled(t *testing.T) {
	searcher := &fakeSearcher{
		searches: map[string][]trello.Card{
			"42-17-api-rework": {{ID: "single", ShortLink: "slSingle", IDShort: 42}},
		},
	}
	conf := &config.Config{}

	ids, err := ResolveFromBranch(context.Background(), conf, searcher, "feature/42-17-api-rework", nil)
	if err != nil {
		t.Fatalf("ResolveFromBranch failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"slSingle"}) {
		t.Errorf("expected single-card path [slSingle], got %v", ids)
	}
}
