package pipeline

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// API is the subset of the CodePipeline client used by CodePipelineCatalog.
type API interface {
	GetPipeline(ctx context.Context, in *codepipeline.GetPipelineInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineOutput, error)
	GetPipelineExecution(ctx context.Context, in *codepipeline.GetPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineExecutionOutput, error)
	StartPipelineExecution(ctx context.Context, in *codepipeline.StartPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.StartPipelineExecutionOutput, error)
	PutJobSuccessResult(ctx context.Context, in *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, in *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// CodePipelineCatalog implements Catalog on AWS CodePipeline.
type CodePipelineCatalog struct {
	api API
}

// NewCodePipelineCatalog wraps api.
func NewCodePipelineCatalog(api API) *CodePipelineCatalog {
	return &CodePipelineCatalog{api: api}
}

func remote(op, pipeline string, err error) error {
	var notFound *types.PipelineNotFoundException
	if errors.As(err, &notFound) {
		return ferrors.PipelineNotFound(pipeline)
	}
	return ferrors.RemoteServiceError(ferrors.CategoryPipeline, op, err).WithContext("pipeline", pipeline)
}

func (c *CodePipelineCatalog) SourceRepository(ctx context.Context, pipeline string) (string, error) {
	out, err := c.api.GetPipeline(ctx, &codepipeline.GetPipelineInput{Name: aws.String(pipeline)})
	if err != nil {
		return "", remote("codepipeline.GetPipeline", pipeline, err)
	}
	if out.Pipeline == nil || len(out.Pipeline.Stages) == 0 || len(out.Pipeline.Stages[0].Actions) == 0 {
		return "", nil
	}
	return out.Pipeline.Stages[0].Actions[0].Configuration["RepositoryName"], nil
}

func (c *CodePipelineCatalog) Execution(ctx context.Context, pipeline, executionID string) (Execution, error) {
	out, err := c.api.GetPipelineExecution(ctx, &codepipeline.GetPipelineExecutionInput{
		PipelineName:        aws.String(pipeline),
		PipelineExecutionId: aws.String(executionID),
	})
	if err != nil {
		var missing *types.PipelineExecutionNotFoundException
		if errors.As(err, &missing) {
			return Execution{}, ferrors.PipelineNotFound(pipeline).WithContext("execution_id", executionID)
		}
		return Execution{}, remote("codepipeline.GetPipelineExecution", pipeline, err)
	}

	exec := Execution{Pipeline: pipeline, ID: executionID}
	if pe := out.PipelineExecution; pe != nil {
		exec.Status = string(pe.Status)
		for _, ar := range pe.ArtifactRevisions {
			exec.Revisions = append(exec.Revisions, Revision{
				Name:        aws.ToString(ar.Name),
				RevisionID:  aws.ToString(ar.RevisionId),
				RevisionURL: aws.ToString(ar.RevisionUrl),
			})
			if ar.Created != nil && ar.Created.After(exec.UpdatedAt) {
				exec.UpdatedAt = *ar.Created
			}
		}
	}
	return exec, nil
}

func (c *CodePipelineCatalog) StartExecution(ctx context.Context, pipeline string) (string, error) {
	out, err := c.api.StartPipelineExecution(ctx, &codepipeline.StartPipelineExecutionInput{Name: aws.String(pipeline)})
	if err != nil {
		return "", remote("codepipeline.StartPipelineExecution", pipeline, err)
	}
	return aws.ToString(out.PipelineExecutionId), nil
}

func (c *CodePipelineCatalog) ReportJob(ctx context.Context, jobID string, success bool, message string) error {
	if success {
		_, err := c.api.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{JobId: aws.String(jobID)})
		if err != nil {
			return ferrors.RemoteServiceError(ferrors.CategoryPipeline, "codepipeline.PutJobSuccessResult", err).
				WithContext("job_id", jobID)
		}
		return nil
	}
	_, err := c.api.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(jobID),
		FailureDetails: &types.FailureDetails{
			Type:    types.FailureTypeJobFailed,
			Message: aws.String(message),
		},
	})
	if err != nil {
		return ferrors.RemoteServiceError(ferrors.CategoryPipeline, "codepipeline.PutJobFailureResult", err).
			WithContext("job_id", jobID)
	}
	return nil
}
