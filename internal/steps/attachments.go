package steps

import (
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/trello"
)

// Attachments keeps the PR URL attached to every resolved card so the board
// links back to the code change.
type Attachments struct {
	board trello.API
}

// NewAttachments creates the attachment step.
func NewAttachments(deps *pipeline.Dependencies) *Attachments {
	return &Attachments{
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *Attachments) Name() string {
	return "attachments"
}

// Run attaches the PR link to each card that does not carry it yet.
// Cards are independent resources, so the per-card work fans out.
func (s *Attachments) Run(ctx *pipeline.Context) error {
	link := ctx.PR.URL
	if link == "" {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			existing, err := s.board.CardAttachments(gctx, cardID)
			if err != nil {
				return err
			}
			for _, attachment := range existing {
				if strings.Contains(attachment.URL, link) {
					slog.Info("[attachments] card already links the PR", "card", cardID)
					return nil
				}
			}
			return s.board.AddAttachment(gctx, cardID, link)
		})
	}
	return g.Wait()
}
