package daemon

import (
	"context"
	"log/slog"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/events"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/trigger"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/workflow"
)

const subscriberBuffer = 64

// TriggerHandler handles branch updates.
type TriggerHandler interface {
	Handle(ctx context.Context, u ingress.ReferenceUpdate) (trigger.Result, error)
}

// OutcomeHandler handles finished pipeline executions.
type OutcomeHandler interface {
	Handle(ctx context.Context, o ingress.PipelineOutcome) (notify.Delivery, error)
}

// ExecutionSubmitter queues workflow executions.
type ExecutionSubmitter interface {
	Submit(exec workflow.Execution) (string, error)
}

// Handlers are the bus consumers. A nil field leaves that event kind
// unsubscribed.
type Handlers struct {
	Trigger    TriggerHandler
	Notifier   OutcomeHandler
	Executions ExecutionSubmitter
	// DefaultInstanceID fills execution requests that name no builder.
	DefaultInstanceID string
}

// subscription is one consumer loop ready to run.
type subscription struct {
	name string
	run  func(ctx context.Context) error
}

// subscribe registers every configured handler on bus. The returned loops
// exit when ctx ends or the bus closes.
func (h Handlers) subscribe(bus *events.Bus) []subscription {
	var subs []subscription
	if h.Trigger != nil {
		ch, _ := events.Subscribe[events.ReferenceUpdated](bus, subscriberBuffer)
		subs = append(subs, subscription{"trigger", func(ctx context.Context) error {
			return consume(ctx, ch, func(ctx context.Context, evt events.ReferenceUpdated) {
				res, err := h.Trigger.Handle(ctx, evt.Update)
				if err != nil {
					slog.Error("Branch update failed",
						logfields.Repository(evt.Update.RepositoryName),
						logfields.Branch(evt.Update.ReferenceName),
						slog.String("source", evt.Source),
						logfields.Error(err))
					return
				}
				if !res.Triggered {
					slog.Debug("Branch update declined",
						logfields.Repository(evt.Update.RepositoryName),
						logfields.Branch(evt.Update.ReferenceName))
				}
			})
		}})
	}
	if h.Notifier != nil {
		ch, _ := events.Subscribe[events.PipelineFinished](bus, subscriberBuffer)
		subs = append(subs, subscription{"notifier", func(ctx context.Context) error {
			return consume(ctx, ch, func(ctx context.Context, evt events.PipelineFinished) {
				// Handle logs the cause itself.
				_, _ = h.Notifier.Handle(ctx, evt.Outcome)
			})
		}})
	}
	if h.Executions != nil {
		ch, _ := events.Subscribe[events.ExecutionRequested](bus, subscriberBuffer)
		subs = append(subs, subscription{"workflow", func(ctx context.Context) error {
			return consume(ctx, ch, func(_ context.Context, evt events.ExecutionRequested) {
				req := evt.Request
				if req.InstanceID == "" {
					req.InstanceID = h.DefaultInstanceID
				}
				id, err := h.Executions.Submit(workflow.Execution{ID: evt.ExecutionID, Request: req})
				if err != nil {
					slog.Error("Execution rejected",
						logfields.ExecutionID(evt.ExecutionID),
						logfields.Pipeline(req.PipelineName),
						logfields.Error(err))
					return
				}
				slog.Info("Execution queued", logfields.ExecutionID(id), logfields.Pipeline(req.PipelineName))
			})
		}})
	}
	return subs
}

func consume[T any](ctx context.Context, ch <-chan T, handle func(context.Context, T)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			handle(ctx, evt)
		}
	}
}
