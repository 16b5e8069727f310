package steps

import (
	"log/slog"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// PRLabels copies the first card's labels onto the PR, so the board's
// categorization shows up in the repository too.
type PRLabels struct {
	gh    github.API
	board trello.API
}

// NewPRLabels creates the PR labeling step.
func NewPRLabels(deps *pipeline.Dependencies) *PRLabels {
	return &PRLabels{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *PRLabels) Name() string {
	return "pr_labels"
}

// Run adds the card's label names to the PR, limited to labels the
// repository actually defines and the PR does not carry yet.
func (s *PRLabels) Run(ctx *pipeline.Context) error {
	conf := ctx.Config
	if !conf.AddCardLabelsToPR || len(ctx.CardIDs) == 0 {
		return nil
	}

	card, err := s.board.Card(ctx.Ctx, ctx.CardIDs[0])
	if err != nil {
		return err
	}
	if len(card.Labels) == 0 {
		return nil
	}

	repoLabels, err := s.gh.ListRepoLabels(ctx.Ctx)
	if err != nil {
		return err
	}
	prLabels, err := s.gh.ListPRLabels(ctx.Ctx)
	if err != nil {
		return err
	}

	// Repo and PR label names are compared in the board's naming.
	labelMap := conf.LabelsMap()
	inRepo := make(map[string]bool, len(repoLabels))
	for _, name := range repoLabels {
		inRepo[translate(name, labelMap)] = true
	}
	onPR := make(map[string]bool, len(prLabels))
	for _, name := range prLabels {
		onPR[translate(name, labelMap)] = true
	}

	var missing []string
	for _, label := range card.Labels {
		if inRepo[label.Name] && !onPR[label.Name] {
			missing = append(missing, label.Name)
		}
	}

	if len(missing) == 0 {
		slog.Info("[pr_labels] PR already carries the card labels")
		return nil
	}

	slog.Info("[pr_labels] adding card labels to PR", "labels", missing)

	return s.gh.AddLabels(ctx.Ctx, missing)
}
