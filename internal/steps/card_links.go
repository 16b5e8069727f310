package steps

import (
	"log/slog"
	"strings"

	"github.com/trellosync/trellosync/internal/cards"
	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// CardLinks keeps a backlink comment on the PR: every resolved card that is
// not yet mentioned in the description or a comment gets its short URL
// posted.
type CardLinks struct {
	gh    github.API
	board trello.API
}

// NewCardLinks creates the backlink step.
func NewCardLinks(deps *pipeline.Dependencies) *CardLinks {
	return &CardLinks{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *CardLinks) Name() string {
	return "card_links"
}

// Run comments the card URLs that are missing from the PR.
func (s *CardLinks) Run(ctx *pipeline.Context) error {
	linked := cards.MatchCardIDs(ctx.Config, ctx.PR.Body)

	comments, err := s.gh.ListComments(ctx.Ctx)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		linked = append(linked, cards.MatchCardIDs(ctx.Config, comment.Body)...)
	}

	mentioned := make(map[string]bool, len(linked))
	for _, id := range linked {
		mentioned[id] = true
	}

	var unlinked []string
	for _, id := range ctx.CardIDs {
		if !mentioned[id] {
			unlinked = append(unlinked, id)
		}
	}

	if len(unlinked) == 0 {
		slog.Info("[card_links] all cards already mentioned under the PR")
		return nil
	}

	slog.Info("[card_links] commenting card urls to PR", "cardIds", unlinked)

	urls := make([]string, 0, len(unlinked))
	for _, id := range unlinked {
		card, err := s.board.Card(ctx.Ctx, id)
		if err != nil {
			return err
		}
		urls = append(urls, card.ShortURL)
	}

	comment := strings.Join(urls, "\n")
	if ctx.Config.RequireKeywordPrefix {
		comment = "Closes " + strings.Join(urls, " ")
	}

	if err := s.gh.CreateComment(ctx.Ctx, comment); err != nil {
		return err
	}
	ctx.Result.CommentPosted = true
	return nil
}
