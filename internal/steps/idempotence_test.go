package steps

import (
	"context"
	"testing"

	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// A run against external state that already reflects the PR must not issue
// a single mutation call.
func TestPipelineIsFixedPointOnConvergedState(t *testing.T) {
	conf := &config.Config{
		ListIDPROpen:           "listOpen",
		AddLabelsToCards:       true,
		AddBranchCategoryLabel: true,
		AddCardLabelsToPR:      true,
		AddMembersToCards:      true,
	}

	gh := &fakeGitHub{
		pr: &github.PullRequest{
			Number:  7,
			State:   "open",
			Title:   "Rework the API",
			Body:    "Closes https://trello.com/c/abc123",
			HeadRef: "feature/42-api-rework",
			Author:  "octo-cat",
			URL:     "https://github.com/acme/widgets/pull/7",
		},
		repoLabels: []string{"feature"},
		prLabels:   []string{"feature"},
	}

	board := newFakeTrello()
	board.cards["abc123"] = &trello.Card{
		ID:        "abc123",
		IDBoard:   "board1",
		IDList:    "listOpen",
		IDMembers: []string{"mOcto"},
		Labels:    []trello.Label{{ID: "lblFeature", Name: "feature"}},
		ShortURL:  "https://trello.com/c/abc123",
	}
	board.attachments["abc123"] = []trello.Attachment{
		{URL: "https://github.com/acme/widgets/pull/7"},
	}
	board.boardLabels["board1"] = []trello.Label{{ID: "lblFeature", Name: "feature"}}
	board.members["octo_cat"] = &trello.Member{ID: "mOcto"}

	registry := pipeline.NewRegistry()
	RegisterAll(registry)
	p, err := registry.BuildFromNames(pipeline.Presets["pr-sync"], &pipeline.Dependencies{
		GitHub: gh,
		Trello: board,
	})
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	ctx := pipeline.NewContext(context.Background(), &pipeline.PullRequest{Number: 7}, "synchronize", conf)
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(gh.createdComments) != 0 {
		t.Errorf("converged state must not produce comments, got %v", gh.createdComments)
	}
	if len(gh.updatedBodies) != 0 {
		t.Errorf("converged state must not rewrite the body, got %v", gh.updatedBodies)
	}
	if len(gh.addedLabels) != 0 {
		t.Errorf("converged state must not label the PR, got %v", gh.addedLabels)
	}
	if len(board.addedAttachments) != 0 {
		t.Errorf("converged state must not attach, got %v", board.addedAttachments)
	}
	if len(board.addedLabels) != 0 {
		t.Errorf("converged state must not add card labels, got %v", board.addedLabels)
	}
	if len(board.addedMembers) != 0 || len(board.removedMembers) != 0 {
		t.Errorf("converged state must not touch members, got adds %v removes %v",
			board.addedMembers, board.removedMembers)
	}
	if len(board.created) != 0 || len(board.archived) != 0 {
		t.Errorf("converged state must not create or archive cards")
	}

	if len(board.moves) != 0 {
		t.Errorf("converged state must not move cards, got %v", board.moves)
	}
}
