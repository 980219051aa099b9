// Package jobapi dispatches build commands to the builder and reports their
// status. It is the workflow's only view of the remote command service.
package jobapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/metrics"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
)

// Names of the variables the build document exports to the build script.
const (
	BranchVarName = "branch_name"
	RepoVarName   = "repository_name"
)

// DefaultReceiveWait bounds the dispatch-time correlation read.
const DefaultReceiveWait = 20 * time.Second

// Settings configure a Dispatcher.
type Settings struct {
	DocumentName string
	ReceiveWait  time.Duration
	// AckOnDispatch removes the correlation record at dispatch time. When
	// false the record becomes visible again and the notifier consumes it.
	AckOnDispatch bool
}

// Response is the job API reply for both commands.
type Response struct {
	CommandID string         `json:"commandId"`
	Status    command.Status `json:"status"`
}

// Dispatcher runs and inspects build commands.
type Dispatcher struct {
	queues   correlation.Routes
	catalog  pipeline.Catalog
	commands command.Service
	recorder metrics.Recorder
	settings Settings
}

// New creates a Dispatcher.
func New(queues correlation.Routes, catalog pipeline.Catalog, commands command.Service, recorder metrics.Recorder, settings Settings) *Dispatcher {
	if settings.ReceiveWait <= 0 {
		settings.ReceiveWait = DefaultReceiveWait
	}
	return &Dispatcher{
		queues:   queues,
		catalog:  catalog,
		commands: commands,
		recorder: metrics.OrNoop(recorder),
		settings: settings,
	}
}

// Handle routes req by command. Any failure is logged with its cause and
// returned as the generic processing error.
func (d *Dispatcher) Handle(ctx context.Context, req ingress.JobRequest) (Response, error) {
	var (
		resp Response
		err  error
	)
	if err = req.Validate(); err == nil {
		switch req.Command {
		case ingress.CommandRun:
			resp, err = d.Run(ctx, req)
		case ingress.CommandStatus:
			resp, err = d.Status(ctx, req.CommandID, req.InstanceID)
		}
	}
	if err != nil {
		slog.Error("Job processing failed",
			slog.String("command", req.Command),
			logfields.InstanceID(req.InstanceID),
			logfields.CommandID(req.CommandID),
			logfields.Pipeline(req.PipelineName),
			logfields.Error(err))
		return Response{}, ferrors.ProcessingError()
	}
	return resp, nil
}

// Run sends the build command for req. A missing correlation record does not
// fail the run: the command goes out with an empty branch and repository.
func (d *Dispatcher) Run(ctx context.Context, req ingress.JobRequest) (Response, error) {
	log := slog.With(logfields.Pipeline(req.PipelineName), logfields.ExecutionID(req.ExecutionID))

	rec, err := d.correlate(ctx, req.PipelineName)
	if err != nil {
		return Response{}, err
	}

	repo, err := d.catalog.SourceRepository(ctx, req.PipelineName)
	if err != nil {
		return Response{}, err
	}
	repoValue := rec.Repository
	switch {
	case repoValue == "":
		repoValue = repo
	case repo != "" && repo != repoValue:
		log.Warn("Correlation record repository differs from pipeline source",
			logfields.Repository(repoValue), slog.String("pipeline_repository", repo))
	}

	commandID, err := d.commands.Send(ctx, command.Invocation{
		InstanceID:   req.InstanceID,
		DocumentName: d.settings.DocumentName,
		Parameters:   parameters(req, rec.Branch, repoValue),
		Comment:      req.PipelineName + " " + req.ExecutionID,
	})
	if err != nil {
		return Response{}, err
	}

	log.Info("Build command sent",
		logfields.CommandID(commandID),
		logfields.InstanceID(req.InstanceID),
		logfields.Branch(rec.Branch),
		logfields.Repository(repoValue))
	return Response{CommandID: commandID, Status: command.StatusInProgress}, nil
}

// Status reads the state of a previously sent command.
func (d *Dispatcher) Status(ctx context.Context, commandID, instanceID string) (Response, error) {
	native, err := d.commands.Lookup(ctx, commandID, instanceID)
	if err != nil {
		return Response{}, err
	}
	raw, ok := native.Get()
	if !ok {
		return Response{}, ferrors.CommandNotFound(commandID, instanceID)
	}
	return Response{CommandID: commandID, Status: command.MapNative(raw)}, nil
}

func (d *Dispatcher) correlate(ctx context.Context, pipelineName string) (correlation.Record, error) {
	q, err := d.queues.For(pipelineName)
	if err != nil {
		return correlation.Record{}, err
	}
	opt, err := q.Dequeue(ctx, d.settings.ReceiveWait)
	if err != nil {
		return correlation.Record{}, err
	}
	msg, ok := opt.Get()
	if !ok {
		slog.Warn("No correlation record received; dispatching without branch", logfields.Queue(q.Name()))
		d.recorder.IncDequeue("empty")
		return correlation.Record{}, nil
	}
	d.recorder.IncDequeue("received")

	if d.settings.AckOnDispatch {
		if err := q.Acknowledge(ctx, msg.Receipt); err != nil {
			slog.Warn("Acknowledge failed", logfields.Queue(q.Name()), logfields.MessageID(msg.ID), logfields.Error(err))
		}
	}

	rec, err := msg.Record()
	if err != nil {
		slog.Warn("Ignoring malformed correlation record",
			logfields.Queue(q.Name()), logfields.MessageID(msg.ID), logfields.Error(err))
		return correlation.Record{}, nil
	}
	return rec, nil
}

// parameters builds the command document parameters. A zero timeout is left
// out so the document's own default applies.
func parameters(req ingress.JobRequest, branch, repo string) map[string][]string {
	p := map[string][]string{
		"inputBucketName":    {req.InputBucketName},
		"inputObjectKey":     {req.InputObjectKey},
		"commands":           {req.CommandText},
		"workingDirectory":   {req.WorkingDirectory},
		"outputArtifactPath": {req.OutputArtifactPath},
		"outputBucketName":   {req.OutputBucketName},
		"outputObjectKey":    {req.OutputObjectKey},
		"executionId":        {req.ExecutionID},
		"pipelineArn":        {req.PipelineArn},
		"pipelineName":       {req.PipelineName},
		"branchVarName":      {BranchVarName},
		"branchVarValue":     {branch},
		"repoVarName":        {RepoVarName},
		"repoVarValue":       {repo},
	}
	if req.Timeout > 0 {
		p["executionTimeout"] = []string{req.Timeout.String()}
	}
	return p
}
