package steps

import (
	"github.com/trellosync/trellosync/internal/core/pipeline"
)

// RegisterAll registers every step factory in the registry.
func RegisterAll(registry *pipeline.Registry) {
	registry.Register("find_cards", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewFindCards(deps), nil
	})
	registry.Register("card_links", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewCardLinks(deps), nil
	})
	registry.Register("attachments", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewAttachments(deps), nil
	})
	registry.Register("move_cards", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewMoveCards(deps), nil
	})
	registry.Register("card_labels", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewCardLabels(deps), nil
	})
	registry.Register("pr_labels", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewPRLabels(deps), nil
	})
	registry.Register("card_members", func(deps *pipeline.Dependencies) (pipeline.Step, error) {
		return NewCardMembers(deps), nil
	})
}
