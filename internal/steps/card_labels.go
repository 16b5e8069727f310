package steps

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// CardLabels reconciles card labels against the PR: the branch category and
// the PR's own labels form the desired set, and only missing labels are
// added (never removed).
type CardLabels struct {
	gh    github.API
	board trello.API
}

// NewCardLabels creates the label reconciliation step.
func NewCardLabels(deps *pipeline.Dependencies) *CardLabels {
	return &CardLabels{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *CardLabels) Name() string {
	return "card_labels"
}

// Run computes the desired label set and applies the missing labels to each card.
func (s *CardLabels) Run(ctx *pipeline.Context) error {
	conf := ctx.Config
	if !conf.AddLabelsToCards {
		slog.Info("[card_labels] label sync disabled, skipping")
		return nil
	}

	labelMap := conf.LabelsMap()

	category := ""
	var desired []string
	if conf.AddBranchCategoryLabel {
		if category = branchCategory(ctx.PR.HeadRef); category != "" {
			category = translate(category, labelMap)
			desired = append(desired, category)
		} else {
			slog.Info("[card_labels] branch has no category segment", "branch", ctx.PR.HeadRef)
		}
	}

	if conf.AddPRLabels {
		prLabels, err := s.gh.ListPRLabels(ctx.Ctx)
		if err != nil {
			return err
		}
		for _, name := range prLabels {
			desired = appendUnique(desired, translate(name, labelMap))
		}
	}

	if len(desired) == 0 {
		slog.Info("[card_labels] no desired labels, skipping")
		return nil
	}

	conflicting := conf.ConflictingLabels()

	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			return s.reconcileCard(gctx, cardID, desired, category, conflicting)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ctx.Result.LabelsApplied = desired
	return nil
}

func (s *CardLabels) reconcileCard(ctx context.Context, cardID string, desired []string, category string, conflicting []string) error {
	card, err := s.board.Card(ctx, cardID)
	if err != nil {
		return err
	}

	onCard := make(map[string]bool, len(card.Labels))
	for _, label := range card.Labels {
		onCard[label.Name] = true
	}

	// A conflicting label, or the category already present, marks the card
	// as already synced; the whole card is left alone.
	for _, name := range conflicting {
		if onCard[name] {
			slog.Info("[card_labels] card carries a conflicting label, skipping", "card", cardID, "label", name)
			return nil
		}
	}
	if category != "" && onCard[category] {
		slog.Info("[card_labels] card already carries the branch category label", "card", cardID)
		return nil
	}

	boardLabels, err := s.board.BoardLabels(ctx, card.IDBoard)
	if err != nil {
		return err
	}

	queued := make(map[string]bool) // board label ids already queued
	for _, name := range desired {
		label := matchBoardLabel(name, boardLabels)
		if label == nil {
			slog.Info("[card_labels] no matching board label", "card", cardID, "label", name)
			continue
		}
		if onCard[label.Name] || queued[label.ID] {
			continue
		}
		queued[label.ID] = true

		if err := s.board.AddLabel(ctx, cardID, label.ID); err != nil {
			// Another run adding the same label concurrently leaves the
			// card in the desired state anyway.
			if trello.IsAlreadyPresent(err) {
				slog.Warn("[card_labels] label already on the card", "card", cardID, "label", label.Name)
				continue
			}
			return err
		}
	}
	return nil
}

// matchBoardLabel resolves a desired label name against the board's labels:
// exact name match preferred, else the first board label whose name is a
// prefix of the desired name. An unnamed board label never matches.
func matchBoardLabel(name string, boardLabels []trello.Label) *trello.Label {
	for i := range boardLabels {
		if boardLabels[i].Name == name {
			return &boardLabels[i]
		}
	}
	for i := range boardLabels {
		if boardLabels[i].Name != "" && strings.HasPrefix(name, boardLabels[i].Name) {
			return &boardLabels[i]
		}
	}
	return nil
}

// translate remaps a GitHub label name into the board's naming when a
// mapping is configured.
func translate(name string, labelMap map[string]string) string {
	if mapped, ok := labelMap[name]; ok {
		return mapped
	}
	return name
}
