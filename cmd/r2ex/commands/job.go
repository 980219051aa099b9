package commands

import (
	"context"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/config"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/daemon"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

// JobCmd groups the job API commands.
type JobCmd struct {
	Run    JobRunCmd    `cmd:"" help:"Dispatch the build command to a builder instance"`
	Status JobStatusCmd `cmd:"" help:"Report the status of a dispatched command"`
}

// RequestFlags describe a build command run.
type RequestFlags struct {
	InstanceID         string `name:"instance-id" help:"Builder instance" env:"BUILDER_INSTANCE_ID"`
	CommandText        string `name:"command-text" required:"" help:"Shell command to run"`
	PipelineName       string `name:"pipeline-name" required:"" help:"Pipeline the build belongs to"`
	ExecutionID        string `name:"execution-id" required:"" help:"Pipeline execution id"`
	Timeout            int    `help:"Command execution timeout in seconds"`
	WorkingDirectory   string `name:"working-directory"`
	InputBucketName    string `name:"input-bucket"`
	InputObjectKey     string `name:"input-key"`
	OutputArtifactPath string `name:"output-artifact-path"`
	OutputBucketName   string `name:"output-bucket"`
	OutputObjectKey    string `name:"output-key"`
	PipelineArn        string `name:"pipeline-arn"`
	JobID              string `name:"job-id" help:"Pipeline job to report the result to"`
}

// Request converts the flags into a run request.
func (f RequestFlags) Request() ingress.JobRequest {
	return ingress.JobRequest{
		Command:            ingress.CommandRun,
		InstanceID:         f.InstanceID,
		CommandText:        f.CommandText,
		Timeout:            ingress.Timeout(f.Timeout),
		WorkingDirectory:   f.WorkingDirectory,
		InputBucketName:    f.InputBucketName,
		InputObjectKey:     f.InputObjectKey,
		OutputArtifactPath: f.OutputArtifactPath,
		OutputBucketName:   f.OutputBucketName,
		OutputObjectKey:    f.OutputObjectKey,
		ExecutionID:        f.ExecutionID,
		PipelineArn:        f.PipelineArn,
		PipelineName:       f.PipelineName,
		JobID:              f.JobID,
	}
}

// JobRunCmd implements 'job run'.
type JobRunCmd struct {
	RequestFlags `embed:""`
}

func (j *JobRunCmd) Run(g *Global, root *CLI) error {
	return handleJob(g, root, j.Request())
}

// JobStatusCmd implements 'job status'.
type JobStatusCmd struct {
	CommandID  string `name:"command-id" required:"" help:"Command to query"`
	InstanceID string `name:"instance-id" required:"" help:"Instance the command ran on" env:"BUILDER_INSTANCE_ID"`
}

func (j *JobStatusCmd) Run(g *Global, root *CLI) error {
	return handleJob(g, root, ingress.JobRequest{
		Command:    ingress.CommandStatus,
		CommandID:  j.CommandID,
		InstanceID: j.InstanceID,
	})
}

func handleJob(g *Global, root *CLI, req ingress.JobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	cfg, err := root.loadConfig(config.RoleDispatcher)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := daemon.Build(ctx, cfg, config.RoleDispatcher)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	resp, err := c.Dispatcher.Handle(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(g, resp)
}
