// Package pipeline provides the core engine that sequences the
// reconciliation steps for one pull request event. It defines the Step
// interface and the Context structure shared by all steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/trellosync/trellosync/internal/core/config"
)

// ErrSkipPipeline indicates that the pipeline should stop gracefully.
// This is not an error condition, just an early exit (e.g. no cards were
// found and the remaining steps would all be no-ops).
var ErrSkipPipeline = errors.New("skip remaining pipeline steps")

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Name returns the unique identifier for this step.
	Name() string

	// Run executes the step's logic. It should return ErrSkipPipeline to
	// stop the pipeline gracefully, or any other error to indicate failure.
	Run(ctx *Context) error
}

// PullRequest is the snapshot of the pull request being reconciled.
// It is fetched fresh at the start of a run; the webhook payload itself can
// be stale by the time the job executes.
type PullRequest struct {
	Org       string
	Repo      string
	Number    int
	Title     string
	Body      string
	State     string // "open" or "closed"
	Draft     bool
	HeadRef   string
	BaseRef   string
	Author    string
	Assignees []string
	URL       string
}

// Result holds the accumulated results from pipeline execution.
type Result struct {
	PRNumber      int
	CardIDs       []string
	Skipped       bool
	SkipReason    string
	CommentPosted bool
	MovedToList   string
	Archived      bool
	LabelsApplied []string

	// FailureMessage is set for policy failures that must fail the job
	// without aborting the remaining (no-op) steps.
	FailureMessage string
}

// Context carries data through the pipeline steps.
type Context struct {
	// Ctx is the Go context for cancellation and timeouts.
	Ctx context.Context

	// PR is the pull request being reconciled.
	PR *PullRequest

	// EventAction is the webhook action that triggered the run
	// (e.g. "opened", "closed", "submitted").
	EventAction string

	// Config is the loaded configuration.
	Config *config.Config

	// CardIDs is the resolved card id list, set by the find_cards step and
	// consumed by every step after it. It is a set: no duplicates, ordered
	// by first discovery.
	CardIDs []string

	// Result accumulates the processing results.
	Result *Result

	// Metadata allows steps to pass arbitrary data to subsequent steps.
	Metadata map[string]interface{}
}

// NewContext creates a new pipeline context for a pull request event.
func NewContext(ctx context.Context, pr *PullRequest, action string, cfg *config.Config) *Context {
	return &Context{
		Ctx:         ctx,
		PR:          pr,
		EventAction: action,
		Config:      cfg,
		Result:      &Result{PRNumber: pr.Number},
		Metadata:    make(map[string]interface{}),
	}
}

// Pipeline executes a sequence of steps.
type Pipeline struct {
	steps []Step
}

// New creates a new pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes all steps in order.
// Stops on the first error (unless it's ErrSkipPipeline, which is graceful).
func (p *Pipeline) Run(ctx *Context) error {
	for _, step := range p.steps {
		if err := step.Run(ctx); err != nil {
			if errors.Is(err, ErrSkipPipeline) {
				return nil
			}
			return fmt.Errorf("step '%s' failed: %w", step.Name(), err)
		}
	}
	return nil
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// Steps returns the list of steps (for introspection).
func (p *Pipeline) Steps() []Step {
	return p.steps
}
