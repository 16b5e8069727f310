package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trellosync/trellosync/internal/core/pipeline"
	"github.com/trellosync/trellosync/internal/steps"
	"github.com/trellosync/trellosync/internal/tui"
)

// statusReportingStep wraps a step to publish progress to the TUI.
type statusReportingStep struct {
	inner      pipeline.Step
	statusChan chan<- tui.PipelineStatusMsg
}

func (s *statusReportingStep) Name() string {
	return s.inner.Name()
}

func (s *statusReportingStep) Run(ctx *pipeline.Context) error {
	s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "started", Message: "Starting..."}

	err := s.inner.Run(ctx)

	if err != nil {
		if errors.Is(err, pipeline.ErrSkipPipeline) {
			s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "skipped", Message: ctx.Result.SkipReason}
			return err
		}
		s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "error", Message: err.Error()}
		return err
	}

	s.statusChan <- tui.PipelineStatusMsg{Step: s.Name(), Status: "success", Message: "Completed"}
	return nil
}

// buildPipeline registers all steps and materializes the requested ones.
func buildPipeline(stepNames []string, deps *pipeline.Dependencies) (*pipeline.Pipeline, error) {
	registry := pipeline.NewRegistry()
	steps.RegisterAll(registry)
	return registry.BuildFromNames(stepNames, deps)
}

// runPipelineCI runs the pipeline without a TUI and prints the result as
// JSON, which workflow logs can be grepped for.
func runPipelineCI(pCtx *pipeline.Context, deps *pipeline.Dependencies, stepNames []string) error {
	p, err := buildPipeline(stepNames, deps)
	if err != nil {
		return err
	}

	if err := p.Run(pCtx); err != nil {
		return err
	}

	out, err := json.MarshalIndent(pCtx.Result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runPipelineTUI runs the pipeline behind an interactive progress view.
func runPipelineTUI(pCtx *pipeline.Context, deps *pipeline.Dependencies, stepNames []string) error {
	p, err := buildPipeline(stepNames, deps)
	if err != nil {
		return err
	}

	statusChan := make(chan tui.PipelineStatusMsg)

	var wrapped []pipeline.Step
	for _, step := range p.Steps() {
		wrapped = append(wrapped, &statusReportingStep{inner: step, statusChan: statusChan})
	}
	wrappedPipeline := pipeline.New(wrapped...)

	title := fmt.Sprintf("%s/%s#%d", pCtx.PR.Org, pCtx.PR.Repo, pCtx.PR.Number)
	program := tea.NewProgram(tui.NewModel(title, stepNames, statusChan))

	go func() {
		defer close(statusChan)

		if err := wrappedPipeline.Run(pCtx); err != nil {
			program.Send(tui.ResultMsg{Success: false, Output: err.Error()})
			return
		}

		out, _ := json.MarshalIndent(pCtx.Result, "", "  ")
		program.Send(tui.ResultMsg{Success: true, Output: string(out)})
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
