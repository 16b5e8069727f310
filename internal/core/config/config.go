// Package config handles loading and validating the trellosync configuration.
//
// Configuration comes from one of two places: a YAML file (local runs,
// environment variables expanded before parsing) or the GitHub Actions
// runner environment, where every action input is exposed as an INPUT_*
// variable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config is the flat, immutable option record for a single run.
type Config struct {
	// Credentials.
	GitHubToken     string `yaml:"github_token" env:"INPUT_GITHUB_TOKEN"`
	TrelloAPIKey    string `yaml:"trello_api_key" env:"INPUT_TRELLO_API_KEY"`
	TrelloAuthToken string `yaml:"trello_auth_token" env:"INPUT_TRELLO_AUTH_TOKEN"`

	// TrelloCardPosition is where created/moved cards land in a list ("top" or "bottom").
	TrelloCardPosition string `yaml:"trello_card_position" env:"INPUT_TRELLO_CARD_POSITION"`

	// Card matching.
	RequireKeywordPrefix           bool   `yaml:"require_keyword_prefix" env:"INPUT_GITHUB_REQUIRE_KEYWORD_PREFIX"`
	EnableRelatedKeywordPrefix     bool   `yaml:"enable_related_keyword_prefix" env:"INPUT_GITHUB_ENABLE_RELATED_KEYWORD_PREFIX"`
	RequireTrelloCard              bool   `yaml:"require_trello_card" env:"INPUT_GITHUB_REQUIRE_TRELLO_CARD"`
	IncludePRComments              bool   `yaml:"include_pr_comments" env:"INPUT_GITHUB_INCLUDE_PR_COMMENTS"`
	IncludePRCommitMessages        bool   `yaml:"include_pr_commit_messages" env:"INPUT_GITHUB_INCLUDE_PR_COMMIT_MESSAGES"`
	IncludePRBranchName            bool   `yaml:"include_pr_branch_name" env:"INPUT_GITHUB_INCLUDE_PR_BRANCH_NAME"`
	AllowMultipleCardsInBranchName bool   `yaml:"allow_multiple_cards_in_branch_name" env:"INPUT_GITHUB_ALLOW_MULTIPLE_CARDS_IN_PR_BRANCH_NAME"`
	IncludeNewCardCommand          bool   `yaml:"include_new_card_command" env:"INPUT_GITHUB_INCLUDE_NEW_CARD_COMMAND"`
	TrelloBoardID                  string `yaml:"trello_board_id" env:"INPUT_TRELLO_BOARD_ID"`

	// Lists. Each value is a literal list id, a ";"-joined fallback list of
	// ids, or a newline-delimited "pattern:listId" map keyed on the PR's
	// merge-target branch with "*" as the catch-all pattern.
	ListIDPRDraft            string `yaml:"trello_list_id_pr_draft" env:"INPUT_TRELLO_LIST_ID_PR_DRAFT"`
	ListIDPROpen             string `yaml:"trello_list_id_pr_open" env:"INPUT_TRELLO_LIST_ID_PR_OPEN"`
	ListIDPRChangesRequested string `yaml:"trello_list_id_pr_changes_requested" env:"INPUT_TRELLO_LIST_ID_PR_CHANGES_REQUESTED"`
	ListIDPRApproved         string `yaml:"trello_list_id_pr_approved" env:"INPUT_TRELLO_LIST_ID_PR_APPROVED"`
	ListIDPRClosed           string `yaml:"trello_list_id_pr_closed" env:"INPUT_TRELLO_LIST_ID_PR_CLOSED"`
	ListIDPRMerged           string `yaml:"trello_list_id_pr_merged" env:"INPUT_TRELLO_LIST_ID_PR_MERGED"`
	ListIDPRMergedProduction string `yaml:"trello_list_id_pr_merged_production" env:"INPUT_TRELLO_LIST_ID_PR_MERGED_PRODUCTION"`

	// ProductionBranch is the merge-target branch that routes merged PRs to
	// the merged-to-production list instead of the plain merged list.
	ProductionBranch string `yaml:"production_branch" env:"INPUT_PRODUCTION_BRANCH"`

	// MoveToMergedListOnlyOnMerge skips the merged-list move on events other
	// than the PR actually closing (e.g. a later title edit).
	MoveToMergedListOnlyOnMerge bool `yaml:"move_to_merged_list_only_on_merge" env:"INPUT_TRELLO_MOVE_TO_MERGED_LIST_ONLY_ON_MERGE"`
	ArchiveOnMerge              bool `yaml:"archive_on_merge" env:"INPUT_TRELLO_ARCHIVE_ON_MERGE"`

	// Labels.
	AddLabelsToCards       bool   `yaml:"add_labels_to_cards" env:"INPUT_TRELLO_ADD_LABELS_TO_CARDS"`
	AddBranchCategoryLabel bool   `yaml:"add_branch_category_label" env:"INPUT_TRELLO_ADD_BRANCH_CATEGORY_LABEL"`
	AddPRLabels            bool   `yaml:"add_pr_labels" env:"INPUT_TRELLO_ADD_PR_LABELS"`
	AddCardLabelsToPR      bool   `yaml:"add_card_labels_to_pr" env:"INPUT_GITHUB_ADD_LABELS_TO_PR"`
	ConflictingLabelsRaw   string `yaml:"trello_conflicting_labels" env:"INPUT_TRELLO_CONFLICTING_LABELS"`
	LabelsToTrelloLabels   string `yaml:"github_labels_to_trello_labels" env:"INPUT_GITHUB_LABELS_TO_TRELLO_LABELS"`

	// Members.
	AddMembersToCards      bool   `yaml:"add_members_to_cards" env:"INPUT_TRELLO_ADD_MEMBERS_TO_CARDS"`
	SwitchMembersInReview  bool   `yaml:"switch_members_in_review" env:"INPUT_TRELLO_SWITCH_MEMBERS_IN_REVIEW"`
	RemoveUnrelatedMembers bool   `yaml:"remove_unrelated_members" env:"INPUT_TRELLO_REMOVE_UNRELATED_MEMBERS"`
	UsersToTrelloUsers     string `yaml:"github_users_to_trello_users" env:"INPUT_GITHUB_USERS_TO_TRELLO_USERS"`
	OrganizationName       string `yaml:"trello_organization_name" env:"INPUT_TRELLO_ORGANIZATION_NAME"`

	// Steps is a custom list of pipeline steps (overrides the workflow preset).
	Steps []string `yaml:"steps,omitempty"`

	// Workflow is a preset workflow name (e.g. "pr-sync").
	Workflow string `yaml:"workflow,omitempty"`
}

// Load reads a config file from the given path and expands environment
// variables before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv reads the configuration from the GitHub Actions runner
// environment, where the workflow declares every option as an action input.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// FindConfigPath searches for a config file in standard locations.
func FindConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	candidates := []string{
		".github/trellosync.yaml",
		".github/trellosync.yml",
		".trellosync.yaml",
		".trellosync.yml",
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			abs, _ := filepath.Abs(c)
			return abs
		}
	}

	return ""
}

// Validate checks that the credentials every run needs are present.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("github_token is required")
	}
	if c.TrelloAPIKey == "" || c.TrelloAuthToken == "" {
		return fmt.Errorf("trello_api_key and trello_auth_token are required")
	}
	return nil
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	if c.TrelloCardPosition == "" {
		c.TrelloCardPosition = "top"
	}
	if c.ProductionBranch == "" {
		c.ProductionBranch = "production"
	}
	// Branch-category labels were the original labeling behavior, so turning
	// on label sync implies them unless PR labels were requested instead.
	if c.AddLabelsToCards && !c.AddPRLabels {
		c.AddBranchCategoryLabel = true
	}
}

// UsersMap parses the multiline "github:trello" username mapping.
// Malformed lines are skipped.
func (c *Config) UsersMap() map[string]string {
	return parseMapping(c.UsersToTrelloUsers)
}

// LabelsMap parses the multiline "github:trello" label name mapping.
func (c *Config) LabelsMap() map[string]string {
	return parseMapping(c.LabelsToTrelloLabels)
}

// ConflictingLabels returns the ";"-joined conflicting label names.
func (c *Config) ConflictingLabels() []string {
	if strings.TrimSpace(c.ConflictingLabelsRaw) == "" {
		return nil
	}

	var labels []string
	for _, l := range strings.Split(c.ConflictingLabelsRaw, ";") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

func parseMapping(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	m := make(map[string]string)
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		from := strings.TrimSpace(parts[0])
		to := strings.TrimSpace(parts[1])
		if from == "" || to == "" {
			continue
		}
		m[from] = to
	}
	return m
}
