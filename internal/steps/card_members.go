package steps

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trellosync/trellosync/internal/core/config"
	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/integrations/github"
	"github.com/trellosync/trellosync/internal/integrations/trello"
	"github.com/trellosync/trellosync/internal/review"
)

// CardMembers reconciles card member assignments with the PR. During active
// review the card belongs to the reviewers; otherwise to the contributors
// (author, assignees, committers).
type CardMembers struct {
	gh    github.API
	board trello.API
}

// NewCardMembers creates the member reconciliation step.
func NewCardMembers(deps *pipeline.Dependencies) *CardMembers {
	return &CardMembers{
		gh:    deps.GitHub,
		board: deps.Trello,
	}
}

// Name returns the step name.
func (s *CardMembers) Name() string {
	return "card_members"
}

// Run picks review or contributor mode and reconciles every card.
func (s *CardMembers) Run(ctx *pipeline.Context) error {
	conf := ctx.Config
	if !conf.AddMembersToCards {
		slog.Info("[card_members] member sync disabled, skipping")
		return nil
	}

	var reviewers []string
	if conf.SwitchMembersInReview {
		inReview, err := s.isInReview(ctx)
		if err != nil {
			return err
		}

		reviewers, err = s.reviewerLogins(ctx.Ctx)
		if err != nil {
			return err
		}

		if inReview {
			slog.Info("[card_members] PR is in review, switching members to reviewers")
			return s.switchToReviewers(ctx, reviewers)
		}
	}

	return s.reconcileContributors(ctx, reviewers)
}

// isInReview reports whether the PR is in active review: open, not a draft,
// and not already diverted to the changes-requested or approved lists by
// the move rules.
func (s *CardMembers) isInReview(ctx *pipeline.Context) (bool, error) {
	if ctx.PR.State != "open" || isPullRequestInDraft(ctx.PR) {
		return false, nil
	}

	reviews, err := s.gh.ListReviews(ctx.Ctx)
	if err != nil {
		return false, err
	}
	requested, err := s.gh.ListRequestedReviewers(ctx.Ctx)
	if err != nil {
		return false, err
	}

	changesRequested := review.IsChangesRequested(reviews, requested)
	if changesRequested && ctx.Config.ListIDPRChangesRequested != "" {
		return false, nil
	}
	if !changesRequested && review.IsApproved(reviews, requested) && ctx.Config.ListIDPRApproved != "" {
		return false, nil
	}
	return true, nil
}

// reviewerLogins collects reviewers whose latest review is not pending plus
// the currently requested reviewers.
func (s *CardMembers) reviewerLogins(ctx context.Context) ([]string, error) {
	reviews, err := s.gh.ListReviews(ctx)
	if err != nil {
		return nil, err
	}
	requested, err := s.gh.ListRequestedReviewers(ctx)
	if err != nil {
		return nil, err
	}

	var logins []string
	for _, r := range reviews {
		if r.State != "PENDING" {
			logins = appendUnique(logins, r.User.Login)
		}
	}
	for _, u := range requested {
		logins = appendUnique(logins, u.Login)
	}
	return logins, nil
}

// switchToReviewers replaces every card's members with the PR reviewers.
// The removal proceeds even when no reviewer resolves to a Trello member.
func (s *CardMembers) switchToReviewers(ctx *pipeline.Context, reviewers []string) error {
	memberIDs, err := s.trelloMemberIDs(ctx.Ctx, ctx.Config, reviewers)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			card, err := s.board.Card(gctx, cardID)
			if err != nil {
				return err
			}

			for _, memberID := range card.IDMembers {
				if err := s.removeMember(gctx, card.ID, memberID); err != nil {
					return err
				}
			}
			for _, memberID := range memberIDs {
				if err := s.addMember(gctx, card.ID, memberID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// reconcileContributors assigns the PR contributors and removes members
// that no longer belong: unrelated ones under the removal policy, and
// reviewers left over from a previous review phase when switching is on.
func (s *CardMembers) reconcileContributors(ctx *pipeline.Context, reviewers []string) error {
	contributors, err := s.contributorLogins(ctx)
	if err != nil {
		return err
	}
	if len(contributors) == 0 {
		slog.Info("[card_members] no PR contributors found")
		return nil
	}

	memberIDs, err := s.trelloMemberIDs(ctx.Ctx, ctx.Config, contributors)
	if err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		slog.Info("[card_members] no Trello members found for PR contributors")
		return nil
	}

	desired := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		desired[id] = true
	}

	// Reviewers previously placed on the card are reclaimed when the PR
	// leaves review, even without the unrelated-members policy: those
	// assignments were made by this system, not by a person.
	reviewerIDs := make(map[string]bool)
	if ctx.Config.SwitchMembersInReview && len(reviewers) > 0 {
		ids, err := s.trelloMemberIDs(ctx.Ctx, ctx.Config, reviewers)
		if err != nil {
			return err
		}
		for _, id := range ids {
			reviewerIDs[id] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx.Ctx)
	for _, cardID := range ctx.CardIDs {
		cardID := cardID
		g.Go(func() error {
			card, err := s.board.Card(gctx, cardID)
			if err != nil {
				return err
			}

			onCard := make(map[string]bool, len(card.IDMembers))
			for _, memberID := range card.IDMembers {
				onCard[memberID] = true
			}

			for _, memberID := range memberIDs {
				if onCard[memberID] {
					continue
				}
				if err := s.addMember(gctx, card.ID, memberID); err != nil {
					return err
				}
			}

			for _, memberID := range card.IDMembers {
				if desired[memberID] {
					continue
				}
				if !ctx.Config.RemoveUnrelatedMembers && !reviewerIDs[memberID] {
					continue
				}
				if err := s.removeMember(gctx, card.ID, memberID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// contributorLogins returns the PR author, assignees and commit
// authors/committers, de-duplicated in that order.
func (s *CardMembers) contributorLogins(ctx *pipeline.Context) ([]string, error) {
	var logins []string
	logins = appendUnique(logins, ctx.PR.Author)
	logins = appendUnique(logins, ctx.PR.Assignees...)

	commits, err := s.gh.ListCommits(ctx.Ctx)
	if err != nil {
		return nil, err
	}
	for _, commit := range commits {
		login := commit.AuthorLogin
		if login == "" {
			login = commit.CommitterLogin
		}
		logins = appendUnique(logins, login)
	}
	return logins, nil
}

// trelloMemberIDs resolves GitHub usernames to Trello member ids through
// the explicit mapping table or the normalizing transform. Unresolved
// usernames are dropped silently; org-scoped boards additionally require
// membership in the configured organization.
func (s *CardMembers) trelloMemberIDs(ctx context.Context, conf *config.Config, githubUsernames []string) ([]string, error) {
	usersMap := conf.UsersMap()

	var ids []string
	for _, githubUsername := range githubUsernames {
		username, ok := usersMap[githubUsername]
		if !ok {
			username = strings.ReplaceAll(githubUsername, "-", "_")
		}

		member, err := s.board.Member(ctx, username)
		if err != nil {
			return nil, err
		}
		if member == nil {
			slog.Info("[card_members] no Trello member for username", "username", username)
			continue
		}

		if conf.OrganizationName != "" && !memberInOrganization(member, conf.OrganizationName) {
			// Guests outside the workspace would get read-only card access.
			slog.Info("[card_members] member has no access to the organization",
				"username", username, "organization", conf.OrganizationName)
			continue
		}

		ids = appendUnique(ids, member.ID)
	}
	return ids, nil
}

func memberInOrganization(member *trello.Member, organization string) bool {
	for _, org := range member.Organizations {
		if org.Name == organization {
			return true
		}
	}
	return false
}

// addMember tolerates the member already being on the card (a concurrent
// run applied the same addition).
func (s *CardMembers) addMember(ctx context.Context, cardID, memberID string) error {
	err := s.board.AddMember(ctx, cardID, memberID)
	if trello.IsBenignRace(err) {
		slog.Warn("[card_members] member already on the card", "card", cardID, "member", memberID)
		return nil
	}
	return err
}

// removeMember tolerates the member already being gone.
func (s *CardMembers) removeMember(ctx context.Context, cardID, memberID string) error {
	err := s.board.RemoveMember(ctx, cardID, memberID)
	if trello.IsBenignRace(err) {
		slog.Warn("[card_members] member not on the card", "card", cardID, "member", memberID)
		return nil
	}
	return err
}
