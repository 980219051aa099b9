// Package workflow drives one build execution through its phases: acquire
// the builder, run the build command, optionally release the builder, and
// report completion exactly once.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/eventstore"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/jobapi"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/retry"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/worker"
)

// Phase names a top-level workflow state.
type Phase string

const (
	PhaseAcquireBuilder   Phase = "AcquireBuilder"
	PhaseRunCommand       Phase = "RunCommand"
	PhaseReleaseBuilder   Phase = "ReleaseBuilder"
	PhaseReportCompletion Phase = "ReportCompletion"
)

// DefaultTimeout bounds a whole execution.
const DefaultTimeout = 300 * time.Second

// Jobs is the job API as the workflow calls it.
type Jobs interface {
	Handle(ctx context.Context, req ingress.JobRequest) (jobapi.Response, error)
}

// CompletionReporter receives the final job result.
type CompletionReporter interface {
	ReportJob(ctx context.Context, jobID string, success bool, message string) error
}

// EventSink records execution events.
type EventSink interface {
	Record(ctx context.Context, e eventstore.Event) error
}

// Settings bound an execution.
type Settings struct {
	Timeout        time.Duration
	Poll           retry.Policy
	ReleaseBuilder bool
	// CompletionGrace bounds ReportCompletion after the execution context is gone.
	CompletionGrace time.Duration
}

// Execution is one requested build.
type Execution struct {
	ID      string
	Request ingress.JobRequest
}

// Result is the outcome reported for an execution.
type Result struct {
	ExecutionID string
	Outcome     string // eventstore.Outcome*
	FailedPhase Phase
	CommandID   string
	Duration    time.Duration
	Err         error
}

// Succeeded reports whether the build succeeded.
func (r Result) Succeeded() bool { return r.Outcome == eventstore.OutcomeSucceeded }

// Orchestrator runs executions.
type Orchestrator struct {
	builders worker.Controller
	jobs     Jobs
	reporter CompletionReporter
	sink     EventSink
	recorder metrics.Recorder
	settings Settings
	now      func() time.Time
}

// New creates an Orchestrator. sink may be nil.
func New(builders worker.Controller, jobs Jobs, reporter CompletionReporter, sink EventSink, recorder metrics.Recorder, settings Settings) *Orchestrator {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if settings.Poll.Initial <= 0 {
		settings.Poll = retry.DefaultPolicy()
	}
	if settings.CompletionGrace <= 0 {
		settings.CompletionGrace = 30 * time.Second
	}
	return &Orchestrator{
		builders: builders,
		jobs:     jobs,
		reporter: reporter,
		sink:     sink,
		recorder: metrics.OrNoop(recorder),
		settings: settings,
		now:      time.Now,
	}
}

// Run executes exec. It always reaches ReportCompletion once, whether the
// build succeeded, failed or timed out; the returned Result describes what
// was reported.
func (o *Orchestrator) Run(ctx context.Context, exec Execution) Result {
	log := slog.With(logfields.ExecutionID(exec.ID), logfields.Pipeline(exec.Request.PipelineName))
	start := o.now()
	o.record(ctx, exec.ID, func() (eventstore.Event, error) {
		return eventstore.NewExecutionStarted(exec.ID, eventstore.StartedMeta{
			Pipeline:            exec.Request.PipelineName,
			PipelineExecutionID: exec.Request.ExecutionID,
			JobID:               exec.Request.JobID,
			InstanceID:          exec.Request.InstanceID,
		})
	})

	runCtx, cancel := context.WithTimeout(ctx, o.settings.Timeout)
	defer cancel()

	res := Result{ExecutionID: exec.ID, Outcome: eventstore.OutcomeSucceeded}
	res.Err = o.phase(runCtx, exec.ID, PhaseAcquireBuilder, func(ctx context.Context) (int, error) {
		return o.acquire(ctx, exec.Request.InstanceID)
	})
	if res.Err != nil {
		res.FailedPhase = PhaseAcquireBuilder
	} else {
		res.Err = o.phase(runCtx, exec.ID, PhaseRunCommand, func(ctx context.Context) (int, error) {
			id, polls, err := o.runCommand(ctx, exec)
			res.CommandID = id
			return polls, err
		})
		if res.Err != nil {
			res.FailedPhase = PhaseRunCommand
		}
	}

	if o.settings.ReleaseBuilder {
		if err := o.phase(runCtx, exec.ID, PhaseReleaseBuilder, func(ctx context.Context) (int, error) {
			return 0, o.builders.Stop(ctx, exec.Request.InstanceID)
		}); err != nil {
			log.Warn("Builder release failed", logfields.InstanceID(exec.Request.InstanceID), logfields.Error(err))
		}
	} else {
		log.Debug("Builder release disabled", logfields.Phase(string(PhaseReleaseBuilder)))
		o.recorder.IncPhaseResult(string(PhaseReleaseBuilder), metrics.ResultSkipped)
	}

	if res.Err != nil {
		res.Outcome = eventstore.OutcomeFailed
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res.Outcome = eventstore.OutcomeTimedOut
		}
	}
	res.Duration = o.now().Sub(start)

	o.complete(ctx, exec, res)
	return res
}

// Abandon reports completion for an execution that will never finish, e.g.
// one left running by a previous process.
func (o *Orchestrator) Abandon(ctx context.Context, exec Execution, reason string) Result {
	res := Result{
		ExecutionID: exec.ID,
		Outcome:     eventstore.OutcomeTimedOut,
		Err:         ferrors.NewError(ferrors.CategoryWorkflow, reason).Build(),
	}
	o.complete(ctx, exec, res)
	return res
}

// phase runs fn under metrics and records its PhaseFinished event.
func (o *Orchestrator) phase(ctx context.Context, executionID string, p Phase, fn func(context.Context) (int, error)) error {
	start := o.now()
	polls, err := fn(ctx)
	d := o.now().Sub(start)

	result := metrics.ResultSuccess
	msg := ""
	if err != nil {
		result = metrics.ResultFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result = metrics.ResultTimedOut
		}
		msg = err.Error()
	}
	o.recorder.ObservePhaseDuration(string(p), d)
	o.recorder.IncPhaseResult(string(p), result)
	slog.Info("Phase finished",
		logfields.ExecutionID(executionID),
		logfields.Phase(string(p)),
		logfields.Status(string(result)),
		logfields.Attempt(polls),
		logfields.Duration(d))

	o.record(ctx, executionID, func() (eventstore.Event, error) {
		return eventstore.NewPhaseFinished(executionID, string(p), string(result), polls, d, msg)
	})
	return err
}

// acquire starts the builder and polls until it runs.
func (o *Orchestrator) acquire(ctx context.Context, instanceID string) (int, error) {
	if err := o.builders.Start(ctx, instanceID); err != nil {
		return 0, err
	}
	return o.poll(ctx, PhaseAcquireBuilder, func(ctx context.Context) (bool, error) {
		state, err := o.builders.State(ctx, instanceID)
		if err != nil {
			return false, err
		}
		switch state {
		case worker.StateRunning:
			return true, nil
		case worker.StatePending:
			return false, nil
		default:
			return false, ferrors.NewError(ferrors.CategoryWorkflow, "builder did not start").
				WithContext("instance_id", instanceID).
				WithContext("state", string(state)).
				Build()
		}
	})
}

// runCommand sends the build command and polls its status.
func (o *Orchestrator) runCommand(ctx context.Context, exec Execution) (string, int, error) {
	req := exec.Request
	req.Command = ingress.CommandRun
	started, err := o.jobs.Handle(ctx, req)
	if err != nil {
		return "", 0, err
	}
	commandID := started.CommandID
	o.record(ctx, exec.ID, func() (eventstore.Event, error) {
		return eventstore.NewCommandDispatched(exec.ID, commandID, req.InstanceID)
	})

	polls, err := o.poll(ctx, PhaseRunCommand, func(ctx context.Context) (bool, error) {
		st, err := o.jobs.Handle(ctx, ingress.JobRequest{
			Command:    ingress.CommandStatus,
			CommandID:  commandID,
			InstanceID: req.InstanceID,
		})
		if err != nil {
			return false, err
		}
		switch st.Status {
		case command.StatusSuccess:
			return true, nil
		case command.StatusInProgress:
			return false, nil
		default:
			return false, ferrors.NewError(ferrors.CategoryCommand, "build command failed").
				WithContext("command_id", commandID).
				Build()
		}
	})
	return commandID, polls, err
}

// poll calls check until it reports done, fails, or ctx ends. Delays come
// from the poll policy; the first check happens after one delay, matching a
// Start node that always moves to Poll.
func (o *Orchestrator) poll(ctx context.Context, p Phase, check func(context.Context) (bool, error)) (int, error) {
	for attempt := 1; ; attempt++ {
		if o.settings.Poll.Exhausted(attempt) {
			return attempt - 1, ferrors.NewError(ferrors.CategoryWorkflow, "poll limit reached").
				WithContext("phase", string(p)).
				Build()
		}
		if err := o.settings.Poll.Wait(ctx, attempt); err != nil {
			return attempt - 1, timedOut(p, err)
		}
		o.recorder.IncPoll(string(p))
		done, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return attempt, timedOut(p, ctx.Err())
			}
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
}

func timedOut(p Phase, cause error) error {
	return ferrors.WrapError(cause, ferrors.CategoryWorkflow, "execution timed out").
		WithContext("phase", string(p)).
		Fatal().
		Build()
}

// complete is the ReportCompletion phase. It runs on a context detached from
// cancellation so a timed-out or shut-down execution still reports.
func (o *Orchestrator) complete(ctx context.Context, exec Execution, res Result) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.settings.CompletionGrace)
	defer cancel()
	log := slog.With(logfields.ExecutionID(exec.ID), logfields.Pipeline(exec.Request.PipelineName))

	message := completionMessage(res)

	_ = o.phase(cctx, exec.ID, PhaseReportCompletion, func(ctx context.Context) (int, error) {
		if exec.Request.JobID == "" {
			log.Info("No pipeline job to report to")
			return 0, nil
		}
		return 0, o.reporter.ReportJob(ctx, exec.Request.JobID, res.Succeeded(), message)
	})

	o.record(cctx, exec.ID, func() (eventstore.Event, error) {
		return eventstore.NewExecutionCompleted(exec.ID, res.Outcome, string(res.FailedPhase), message, res.Duration)
	})
	o.recorder.ObserveExecutionDuration(res.Duration)
	o.recorder.IncExecutionOutcome(res.Outcome)

	if res.Err != nil {
		log.Error("Execution failed", logfields.Phase(string(res.FailedPhase)), logfields.Status(res.Outcome), logfields.Error(res.Err))
		return
	}
	log.Info("Execution succeeded", logfields.CommandID(res.CommandID), logfields.Duration(res.Duration))
}

// record appends an event when a sink is configured. Failures are logged.
func (o *Orchestrator) record(ctx context.Context, executionID string, build func() (eventstore.Event, error)) {
	if o.sink == nil {
		return
	}
	e, err := build()
	if err == nil {
		err = o.sink.Record(ctx, e)
	}
	if err != nil {
		slog.Warn("Failed to record execution event", logfields.ExecutionID(executionID), logfields.Error(err))
	}
}

// completionMessage is the text reported to the pipeline job.
func completionMessage(res Result) string {
	if res.Err == nil {
		return "build succeeded"
	}
	msg := res.Err.Error()
	if ce, ok := ferrors.AsClassified(res.Err); ok && ce.Cause() == nil {
		msg = ce.Message()
	}
	if res.FailedPhase != "" {
		msg = string(res.FailedPhase) + ": " + msg
	}
	return msg
}
