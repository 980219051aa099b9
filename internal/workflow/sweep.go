package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/eventstore"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// RunningExecutions lists executions recorded as running.
type RunningExecutions interface {
	RunningSince(cutoff time.Time) []eventstore.ExecutionSummary
}

// SweepStale completes executions recorded as running for longer than
// olderThan that this runner does not own, typically left behind by a
// restart. It returns how many were completed.
func (r *Runner) SweepStale(ctx context.Context, src RunningExecutions, olderThan time.Duration) int {
	n := 0
	for _, s := range src.RunningSince(time.Now().Add(-olderThan)) {
		if r.IsActive(s.ExecutionID) {
			continue
		}
		slog.Warn("Completing abandoned execution",
			logfields.ExecutionID(s.ExecutionID),
			logfields.Pipeline(s.Pipeline),
			slog.Time("started_at", s.StartedAt))
		r.orchestrator.Abandon(ctx, Execution{
			ID: s.ExecutionID,
			Request: ingress.JobRequest{
				PipelineName: s.Pipeline,
				ExecutionID:  s.PipelineExecutionID,
				JobID:        s.JobID,
				InstanceID:   s.InstanceID,
			},
		}, "execution abandoned")
		n++
	}
	return n
}
