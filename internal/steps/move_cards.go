package steps

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
	"github.com/trellosync/trellosync/internal/review"
)

// MoveCards maps the PR lifecycle phase to a board list and moves (or
// archives) every resolved card accordingly.
type MoveCards struct {
	gh    github.API
	board trello.API
}

// NewMoveCards creates the list resolution step.
func NewMoveCards(deps *pipeline.Dependencies) *MoveCards {
	return &MoveCards{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *MoveCards) Name() string {
	return "move_cards"
}

// lifecycle is the evaluated PR state the rules match against.
type lifecycle struct {
	open             bool
	draft            bool
	changesRequested bool
	approved         bool
	merged           bool
}

// listRule is one row of the ordered decision list. Rules are evaluated
// top to bottom and the first match wins, which makes the priority order a
// data structure rather than nested conditionals.
type listRule struct {
	name string
	when func(l lifecycle, ctx *pipeline.Context) bool
	run  func(s *MoveCards, ctx *pipeline.Context) error
}

func moveRule(name string, when func(l lifecycle, ctx *pipeline.Context) bool, listID func(ctx *pipeline.Context) string) listRule {
	return listRule{
		name: name,
		when: when,
		run: func(s *MoveCards, ctx *pipeline.Context) error {
			return s.moveCardsToList(ctx, listID(ctx), name)
		},
	}
}

// listRules is the lifecycle-to-list decision table. A rule only matches
// when its target list is configured, so an unconfigured phase falls
// through to the next row (and ultimately to the logged no-op).
var listRules = []listRule{
	moveRule("draft",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return l.open && l.draft && ctx.Config.ListIDPRDraft != ""
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPRDraft }),

	moveRule("changes requested",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return l.open && !l.draft && l.changesRequested && ctx.Config.ListIDPRChangesRequested != ""
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPRChangesRequested }),

	moveRule("approved",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return l.open && !l.draft && !l.changesRequested && l.approved && ctx.Config.ListIDPRApproved != ""
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPRApproved }),

	moveRule("open",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return l.open && !l.draft && ctx.Config.ListIDPROpen != ""
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPROpen }),

	{
		name: "archive on merge",
		when: func(l lifecycle, ctx *pipeline.Context) bool {
			return !l.open && l.merged && ctx.Config.ArchiveOnMerge
		},
		run: func(s *MoveCards, ctx *pipeline.Context) error {
			return s.archiveCards(ctx)
		},
	},

	{
		name: "merged",
		when: func(l lifecycle, ctx *pipeline.Context) bool {
			return !l.open && l.merged && ctx.Config.ListIDPRMerged != ""
		},
		run: func(s *MoveCards, ctx *pipeline.Context) error {
			// An edit event long after the merge must not drag the card
			// back to the merged list.
			if ctx.Config.MoveToMergedListOnlyOnMerge && ctx.EventAction != "closed" {
				slog.Info("[move_cards] skipping merged list move on non-merge event", "action", ctx.EventAction)
				return nil
			}
			return s.moveCardsToList(ctx, ctx.Config.ListIDPRMerged, "merged")
		},
	},

	moveRule("merged to production",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return !l.open && l.merged && ctx.Config.ListIDPRMergedProduction != "" &&
				ctx.PR.BaseRef == ctx.Config.ProductionBranch
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPRMergedProduction }),

	moveRule("closed",
		func(l lifecycle, ctx *pipeline.Context) bool {
			return !l.open && ctx.Config.ListIDPRClosed != ""
		},
		func(ctx *pipeline.Context) string { return ctx.Config.ListIDPRClosed }),
}

// Run evaluates the decision table and applies the first matching rule.
func (s *MoveCards) Run(ctx *pipeline.Context) error {
	l, err := s.evaluateLifecycle(ctx)
	if err != nil {
		return err
	}

	for _, rule := range listRules {
		if rule.when(l, ctx) {
			slog.Info("[move_cards] matched lifecycle rule", "rule", rule.name)
			return rule.run(s, ctx)
		}
	}

	slog.Info("[move_cards] no list configured for the PR state, skipping",
		"state", ctx.PR.State, "draft", l.draft, "merged", l.merged)
	return nil
}

func (s *MoveCards) evaluateLifecycle(ctx *pipeline.Context) (lifecycle, error) {
	l := lifecycle{
		open:  ctx.PR.State == "open",
		draft: isPullRequestInDraft(ctx.PR),
	}

	if l.open {
		reviews, err := s.gh.ListReviews(ctx.Ctx)
		if err != nil {
			return l, err
		}
		requested, err := s.gh.ListRequestedReviewers(ctx.Ctx)
		if err != nil {
			return l, err
		}
		l.changesRequested = review.IsChangesRequested(reviews, requested)
		l.approved = review.IsApproved(reviews, requested)
		return l, nil
	}

	merged, err := s.gh.IsMerged(ctx.Ctx)
	if err != nil {
		return l, err
	}
	l.merged = merged
	return l, nil
}

// moveCardsToList resolves the configured list-id string and moves every
// card there concurrently. A card already on the target list is left alone.
func (s *MoveCards) moveCardsToList(ctx *pipeline.Context, rawListID, ruleName string) error {
	target := resolveListTarget(rawListID, ctx.PR.BaseRef)
	if target == "" {
		slog.Info("[move_cards] no list pattern matched the merge-target branch, skipping",
			"rule", ruleName, "base", ctx.PR.BaseRef)
		return nil
	}

	listIDs := strings.Split(target, ";")

	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			card, err := s.board.Card(gctx, cardID)
			if err != nil {
				return err
			}

			if len(listIDs) > 1 {
				err = s.moveToBoardLocalList(gctx, card, listIDs)
			} else {
				if card.IDList == target {
					slog.Info("[move_cards] card already on the target list", "card", cardID, "list", target)
					return nil
				}
				err = s.board.MoveCard(gctx, cardID, target, ctx.Config.TrelloBoardID)
			}

			// A concurrent actor moved the card to another board mid-run;
			// the next event will reconcile it.
			if trello.IsMovedConcurrently(err) {
				slog.Warn("[move_cards] card moved to a different board concurrently", "card", cardID)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("[move_cards] moved cards", "rule", ruleName, "cardIds", ctx.CardIDs)
	ctx.Result.MovedToList = target
	return nil
}

// moveToBoardLocalList picks, from a ";"-joined fallback list, the first id
// that exists on the board the card currently lives on, defaulting to the
// first configured id.
func (s *MoveCards) moveToBoardLocalList(ctx context.Context, card *trello.Card, listIDs []string) error {
	boardLists, err := s.board.BoardLists(ctx, card.IDBoard)
	if err != nil {
		return err
	}

	onBoard := make(map[string]bool, len(boardLists))
	for _, list := range boardLists {
		onBoard[list.ID] = true
	}

	target := listIDs[0]
	for _, listID := range listIDs {
		if onBoard[listID] {
			target = listID
			break
		}
	}
	if card.IDList == target {
		slog.Info("[move_cards] card already on the target list", "card", card.ID, "list", target)
		return nil
	}
	return s.board.MoveCard(ctx, card.ID, target, "")
}

func (s *MoveCards) archiveCards(ctx *pipeline.Context) error {
	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			return s.board.ArchiveCard(gctx, cardID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ctx.Result.Archived = true
	return nil
}
