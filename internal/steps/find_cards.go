package steps

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/trellosync/trellosync/internal/cards"
	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// Matches the command as a standalone token so card URLs containing the
// text are left alone.
var newCardCommandRe = regexp.MustCompile(`(?:^|\s)/new-trello-card(?:\s|$)`)

const newCardCommand = "/new-trello-card"

// FindCards aggregates every configured card-id signal: PR description,
// comments, commit messages, branch name and the new-card command.
type FindCards struct {
	gh    github.API
	board trello.API
}

// NewFindCards creates the card discovery step.
func NewFindCards(deps *pipeline.Dependencies) *FindCards {
	return &FindCards{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *FindCards) Name() string {
	return "find_cards"
}

// Run resolves the card id set for the run. When nothing is found the rest
// of the pipeline is skipped; with require_trello_card set, the run is also
// marked as a policy failure.
func (s *FindCards) Run(ctx *pipeline.Context) error {
	conf := ctx.Config

	// The webhook payload can be stale, so the snapshot is re-fetched live.
	pr, err := s.gh.PullRequest(ctx.Ctx)
	if err != nil {
		return err
	}
	ctx.PR = snapshotFromAPI(pr, ctx.PR)

	ids := cards.MatchCardIDs(conf, pr.Body)

	if conf.IncludeNewCardCommand {
		createdID, err := s.createNewCard(ctx, pr)
		if err != nil {
			return err
		}
		ids = appendUnique(ids, createdID)
	}

	if conf.IncludePRComments {
		comments, err := s.gh.ListComments(ctx.Ctx)
		if err != nil {
			return err
		}
		for _, comment := range comments {
			ids = appendUnique(ids, cards.MatchCardIDs(conf, comment.Body)...)
		}
	}

	if conf.IncludePRCommitMessages {
		commits, err := s.gh.ListCommits(ctx.Ctx)
		if err != nil {
			return err
		}
		for _, commit := range commits {
			ids = appendUnique(ids, cards.MatchCardIDs(conf, commit.Message)...)
		}
	}

	if conf.IncludePRBranchName {
		// Multi-card resolution only runs when no earlier signal produced a
		// result; single-card disambiguation is still attempted with the
		// known ids as its guard.
		branchConf := *conf
		if len(ids) > 0 {
			branchConf.AllowMultipleCardsInBranchName = false
		}

		branchIDs, err := cards.ResolveFromBranch(ctx.Ctx, &branchConf, s.board, ctx.PR.HeadRef, ids)
		if err != nil {
			return err
		}
		ids = appendUnique(ids, branchIDs...)
	}

	if len(ids) == 0 {
		slog.Info("[find_cards] could not find card ids")

		ctx.Result.Skipped = true
		ctx.Result.SkipReason = "no cards found"

		if conf.RequireTrelloCard {
			ctx.Result.FailureMessage = "the PR does not contain a link to a Trello card"
		}
		return pipeline.ErrSkipPipeline
	}

	slog.Info("[find_cards] found card ids", "cardIds", ids)

	ctx.CardIDs = ids
	ctx.Result.CardIDs = ids
	return nil
}

// createNewCard creates a card when the PR description carries the
// /new-trello-card command, and rewrites the description to link the card.
func (s *FindCards) createNewCard(ctx *pipeline.Context, pr *github.PullRequest) (string, error) {
	listID := newCardListID(ctx.Config, ctx.PR)
	if listID == "" || pr.Body == "" || !newCardCommandRe.MatchString(pr.Body) {
		return "", nil
	}

	// A provisional body marks the command as taken, so a rapid retrigger
	// does not create the card twice.
	if err := s.gh.UpdateBody(ctx.Ctx, strings.Replace(pr.Body, newCardCommand, "/creating-new-trello-card..", 1)); err != nil {
		return "", err
	}

	card, err := s.board.CreateCard(ctx.Ctx, listID, pr.Title, strings.Replace(pr.Body, newCardCommand, "", 1))
	if err != nil {
		return "", err
	}

	link := card.URL
	if ctx.Config.RequireKeywordPrefix {
		link = fmt.Sprintf("Closes %s", link)
	}
	if err := s.gh.UpdateBody(ctx.Ctx, strings.Replace(pr.Body, newCardCommand, link, 1)); err != nil {
		return "", err
	}

	slog.Info("[find_cards] created card from command", "card", card.ShortLink)

	return card.ShortLink, nil
}

// newCardListID picks the list a command-created card lands in: the draft
// list for open drafts, the open list otherwise.
func newCardListID(conf *config.Config, pr *pipeline.PullRequest) string {
	raw := conf.ListIDPROpen
	if pr.State == "open" && isPullRequestInDraft(pr) {
		raw = conf.ListIDPRDraft
	}
	target := resolveListTarget(raw, pr.BaseRef)
	// Only a single concrete id can host a new card.
	if id, _, multiple := strings.Cut(target, ";"); multiple {
		return id
	}
	return target
}

// snapshotFromAPI refreshes the pipeline snapshot from a live fetch,
// keeping coordinates from the event when the fetch omits them.
func snapshotFromAPI(pr *github.PullRequest, prev *pipeline.PullRequest) *pipeline.PullRequest {
	snapshot := &pipeline.PullRequest{
		Number:    pr.Number,
		Title:     pr.Title,
		Body:      pr.Body,
		State:     pr.State,
		Draft:     pr.Draft,
		HeadRef:   pr.HeadRef,
		BaseRef:   pr.BaseRef,
		Author:    pr.Author,
		Assignees: pr.Assignees,
		URL:       pr.URL,
	}
	if prev != nil {
		snapshot.Org = prev.Org
		snapshot.Repo = prev.Repo
		if snapshot.Number == 0 {
			snapshot.Number = prev.Number
		}
	}
	return snapshot
}
