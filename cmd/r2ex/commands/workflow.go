package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/daemon"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/workflow"
)

// WorkflowCmd groups the workflow commands.
type WorkflowCmd struct {
	Run WorkflowRunCmd `cmd:"" help:"Acquire the builder, run the command, poll to completion and report"`
}

// WorkflowRunCmd implements 'workflow run'.
type WorkflowRunCmd struct {
	RequestFlags `embed:""`
}

// WorkflowOutput is printed when an execution ends.
type WorkflowOutput struct {
	ExecutionID string  `json:"execution_id"`
	Outcome     string  `json:"outcome"`
	FailedPhase string  `json:"failed_phase,omitempty"`
	CommandID   string  `json:"command_id,omitempty"`
	Seconds     float64 `json:"duration_seconds"`
	Error       string  `json:"error,omitempty"`
}

func (w *WorkflowRunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(config.RoleWorkflow)
	if err != nil {
		return err
	}
	req := w.Request()
	if req.InstanceID == "" {
		req.InstanceID = cfg.Command.InstanceID
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := daemon.Build(ctx, cfg, config.RoleWorkflow)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res := c.Workflow.Run(ctx, workflow.Execution{Request: req})
	out := WorkflowOutput{
		ExecutionID: res.ExecutionID,
		Outcome:     res.Outcome,
		FailedPhase: string(res.FailedPhase),
		CommandID:   res.CommandID,
		Seconds:     res.Duration.Round(time.Millisecond).Seconds(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if err := writeJSON(g, out); err != nil {
		return err
	}
	if !res.Succeeded() {
		return ferrors.NewError(ferrors.CategoryWorkflow, "execution did not succeed").
			WithContext("outcome", res.Outcome).
			WithContext("phase", string(res.FailedPhase)).
			Build()
	}
	return nil
}
