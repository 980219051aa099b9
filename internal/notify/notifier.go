// Package notify sends the build report for a finished pipeline execution.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/logresolve"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/mail"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/report"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/source"
)

// VariantParser extracts the build variant token from a branch name.
type VariantParser interface {
	BuildVariant(branch string) (string, error)
}

// LogResolver finds the build log for a report.
type LogResolver interface {
	Resolve(ctx context.Context, req logresolve.Request) (foundation.Option[logresolve.Result], error)
}

// Settings are the static report parameters.
type Settings struct {
	Project     string
	Sender      string
	CC          []string
	ReceiveWait time.Duration
	LinkExpiry  time.Duration
}

// Deps are the collaborators a Notifier needs.
type Deps struct {
	Pipelines pipeline.Catalog
	Queues    correlation.Routes
	Variants  VariantParser
	Commits   source.Provider
	Logs      LogResolver
	Mail      mail.Transport
	Recorder  metrics.Recorder
}

// Notifier turns a pipeline outcome into one report email.
type Notifier struct {
	deps     Deps
	settings Settings
}

// New creates a Notifier.
func New(deps Deps, settings Settings) *Notifier {
	deps.Recorder = metrics.OrNoop(deps.Recorder)
	return &Notifier{deps: deps, settings: settings}
}

// Delivery summarizes what Notify did.
type Delivery struct {
	ExecutionID string
	State       ingress.OutcomeState
	Repository  string
	Branch      string
	Variant     string
	Recipient   string
	LogKey      string
	Subject     string
	Sent        bool
}

// Handle is the outermost entry point. Failures are logged with their cause
// and returned as the generic processing error.
func (n *Notifier) Handle(ctx context.Context, outcome ingress.PipelineOutcome) (Delivery, error) {
	d, err := n.Notify(ctx, outcome)
	if err != nil {
		slog.Error("Notification failed",
			logfields.Pipeline(outcome.Pipeline),
			logfields.ExecutionID(outcome.ExecutionID),
			logfields.Error(err))
		n.deps.Recorder.IncNotification(string(metrics.ResultFailed))
		return d, ferrors.ProcessingError()
	}
	return d, nil
}

// Notify runs the report flow and returns the underlying error on failure.
// A missing access token is not an error: the email is skipped and logged.
func (n *Notifier) Notify(ctx context.Context, outcome ingress.PipelineOutcome) (Delivery, error) {
	d := Delivery{ExecutionID: outcome.ExecutionID, State: outcome.State}
	log := slog.With(logfields.Pipeline(outcome.Pipeline), logfields.ExecutionID(outcome.ExecutionID))

	exec, err := n.deps.Pipelines.Execution(ctx, outcome.Pipeline, outcome.ExecutionID)
	if err != nil {
		return d, err
	}
	if state, ok := ingress.ParseOutcomeState(exec.Status); ok {
		d.State = state
	} else if exec.Status != "" {
		log.Warn("Execution status is not terminal; using event state",
			logfields.Status(exec.Status), logfields.State(string(outcome.State)))
	}

	rev, ok := exec.SourceRevision()
	if !ok {
		return d, ferrors.NewError(ferrors.CategoryPipeline, "execution has no source revision").Build()
	}
	d.Repository, err = source.RepositoryFromRevisionURL(rev.RevisionURL)
	if err != nil {
		return d, err
	}

	rec, err := n.correlate(ctx, outcome.Pipeline)
	if err != nil {
		return d, err
	}
	d.Branch = rec.Branch
	if rec.Repository != d.Repository {
		log.Warn("Correlation record repository differs from execution source",
			logfields.Repository(d.Repository), slog.String("record_repository", rec.Repository))
	}

	d.Variant, err = n.deps.Variants.BuildVariant(rec.Branch)
	if err != nil {
		return d, err
	}

	commit, err := n.deps.Commits.Commit(ctx, d.Repository, rec.CommitID)
	if err != nil {
		return d, err
	}
	d.Recipient = commit.Committer.Email

	resolved, err := n.deps.Logs.Resolve(ctx, logresolve.Request{
		Variant: d.Variant,
		Branch:  rec.Branch,
		Success: d.State.IsSuccess(),
	})
	if err != nil {
		return d, err
	}

	r := report.Report{
		Project:    n.settings.Project,
		Pipeline:   outcome.Pipeline,
		State:      d.State,
		Account:    outcome.Account,
		Region:     outcome.Region,
		CommitID:   rec.CommitID,
		Repository: d.Repository,
		Branch:     rec.Branch,
		Author:     report.Person(commit.Author),
		Committer:  report.Person(commit.Committer),
		LinkExpiry: n.settings.LinkExpiry,
	}
	if res, ok := resolved.Get(); ok {
		d.LogKey = res.Location.Key
		r.Log = &report.Link{URL: res.URL, Name: res.Location.LogFile}
		if c, ok := res.Companion.Get(); ok {
			r.Version, r.ArtifactPath = c.Version, c.ArtifactPath
		}
	}
	d.Subject = r.Subject()

	body, err := report.Render(r)
	if err != nil {
		return d, ferrors.WrapError(err, ferrors.CategoryNotify, "render report").Build()
	}

	err = n.deps.Mail.Send(ctx, mail.Message{
		From:    n.settings.Sender,
		To:      []string{d.Recipient},
		CC:      n.settings.CC,
		Subject: d.Subject,
		HTML:    body,
	})
	switch {
	case errors.Is(err, mail.ErrNoAccessToken):
		log.Error("Error obtaining access token; report not sent", logfields.Recipient(d.Recipient), logfields.Error(err))
		n.deps.Recorder.IncNotification(string(metrics.ResultSkipped))
		return d, nil
	case err != nil:
		return d, err
	}

	d.Sent = true
	n.deps.Recorder.IncNotification(string(metrics.ResultSuccess))
	log.Info("Report sent",
		logfields.Recipient(d.Recipient),
		logfields.Branch(d.Branch),
		logfields.Variant(d.Variant),
		logfields.State(string(d.State)))
	return d, nil
}

// correlate reads and acknowledges the next correlation record. A body that
// does not decode is acknowledged and reported as a miss.
func (n *Notifier) correlate(ctx context.Context, pipelineName string) (correlation.Record, error) {
	q, err := n.deps.Queues.For(pipelineName)
	if err != nil {
		return correlation.Record{}, err
	}
	opt, err := q.Dequeue(ctx, n.settings.ReceiveWait)
	if err != nil {
		return correlation.Record{}, err
	}
	msg, ok := opt.Get()
	if !ok {
		n.deps.Recorder.IncDequeue("empty")
		return correlation.Record{}, ferrors.CorrelationMiss(q.Name())
	}

	if err := q.Acknowledge(ctx, msg.Receipt); err != nil {
		slog.Warn("Acknowledge failed; record may be redelivered",
			logfields.Queue(q.Name()), logfields.MessageID(msg.ID), logfields.Error(err))
	}

	rec, err := msg.Record()
	if err != nil {
		slog.Warn("Discarding malformed correlation record",
			logfields.Queue(q.Name()), logfields.MessageID(msg.ID), logfields.Error(err))
		n.deps.Recorder.IncDequeue("failed")
		return correlation.Record{}, ferrors.CorrelationMiss(q.Name())
	}
	n.deps.Recorder.IncDequeue("received")
	return rec, nil
}
