// Package trigger turns branch pushes into correlation records and pipeline
// executions.
package trigger

import (
	"context"
	"log/slog"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/classifier"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
)

// Classifier decides whether a push builds.
type Classifier interface {
	Classify(repository, branch string) foundation.Option[classifier.Classification]
}

// Result describes a handled push. Triggered is false when the push was
// declined; that is not an error.
type Result struct {
	Triggered      bool
	Classification classifier.Classification
	MessageID      string
	Duplicate      bool
	ExecutionID    string
}

// Handler enqueues the correlation record and starts the pipeline.
type Handler struct {
	classifier Classifier
	queues     correlation.Routes
	catalog    pipeline.Catalog
	recorder   metrics.Recorder
}

// New creates a Handler.
func New(c Classifier, queues correlation.Routes, catalog pipeline.Catalog, recorder metrics.Recorder) *Handler {
	return &Handler{classifier: c, queues: queues, catalog: catalog, recorder: metrics.OrNoop(recorder)}
}

// Handle processes one reference update. The record is enqueued before the
// execution starts so the dispatcher can find it.
func (h *Handler) Handle(ctx context.Context, u ingress.ReferenceUpdate) (Result, error) {
	log := slog.With(logfields.Repository(u.RepositoryName), logfields.Branch(u.ReferenceName), logfields.Commit(u.CommitID))
	if !u.IsBranchUpdate() {
		log.Debug("Ignoring non-branch reference event", slog.String("event", u.Event), slog.String("reference_type", u.ReferenceType))
		return Result{}, nil
	}

	c, ok := h.classifier.Classify(u.RepositoryName, u.ReferenceName).Get()
	if !ok {
		h.recorder.IncEnqueue("declined")
		return Result{}, nil
	}
	res := Result{Classification: c}

	q, err := h.queues.For(c.Pipeline)
	if err != nil {
		return res, err
	}
	rec := correlation.Record{Branch: u.ReferenceName, Repository: u.RepositoryName, CommitID: u.CommitID}
	enq, err := q.Enqueue(ctx, rec, c.GroupID, c.DedupID)
	if err != nil {
		h.recorder.IncEnqueue("failed")
		return res, err
	}
	res.MessageID, res.Duplicate = enq.MessageID, enq.Duplicate
	if enq.Duplicate {
		h.recorder.IncEnqueue("duplicate")
		log.Info("Correlation record already queued", logfields.DedupID(c.DedupID), logfields.Queue(q.Name()))
	} else {
		h.recorder.IncEnqueue("enqueued")
	}

	res.ExecutionID, err = h.catalog.StartExecution(ctx, c.Pipeline)
	if err != nil {
		return res, err
	}
	res.Triggered = true

	log.Info("Pipeline execution started",
		logfields.Pipeline(c.Pipeline),
		logfields.ExecutionID(res.ExecutionID),
		logfields.Variant(c.Variant),
		logfields.VariantType(c.VariantType),
		logfields.MessageID(res.MessageID))
	return res, nil
}
