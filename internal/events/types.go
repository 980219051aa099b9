package events

import (
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

// Event is implemented by every bus event.
type Event interface {
	Kind() ingress.Kind
}

// ReferenceUpdated carries a branch push toward the trigger handler.
type ReferenceUpdated struct {
	Update     ingress.ReferenceUpdate
	Source     string
	ReceivedAt time.Time
}

func (ReferenceUpdated) Kind() ingress.Kind { return ingress.KindReferenceUpdate }

// PipelineFinished carries a terminal pipeline outcome toward the notifier.
type PipelineFinished struct {
	Outcome    ingress.PipelineOutcome
	Source     string
	ReceivedAt time.Time
}

func (PipelineFinished) Kind() ingress.Kind { return ingress.KindPipelineOutcome }

// ExecutionRequested asks the workflow runner to start a build execution.
type ExecutionRequested struct {
	ExecutionID string
	Request     ingress.JobRequest
	Source      string
	ReceivedAt  time.Time
}

func (ExecutionRequested) Kind() ingress.Kind { return ingress.KindJobRequest }
