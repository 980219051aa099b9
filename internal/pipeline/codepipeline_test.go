package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

type fakeAPI struct {
	pipeline  *types.PipelineDeclaration
	execution *types.PipelineExecution
	err       error
	started   []string
	succeeded []string
	failed    map[string]string
}

func (f *fakeAPI) GetPipeline(context.Context, *codepipeline.GetPipelineInput, ...func(*codepipeline.Options)) (*codepipeline.GetPipelineOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &codepipeline.GetPipelineOutput{Pipeline: f.pipeline}, nil
}

func (f *fakeAPI) GetPipelineExecution(context.Context, *codepipeline.GetPipelineExecutionInput, ...func(*codepipeline.Options)) (*codepipeline.GetPipelineExecutionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &codepipeline.GetPipelineExecutionOutput{PipelineExecution: f.execution}, nil
}

func (f *fakeAPI) StartPipelineExecution(_ context.Context, in *codepipeline.StartPipelineExecutionInput, _ ...func(*codepipeline.Options)) (*codepipeline.StartPipelineExecutionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, aws.ToString(in.Name))
	return &codepipeline.StartPipelineExecutionOutput{PipelineExecutionId: aws.String("exec-1")}, nil
}

func (f *fakeAPI) PutJobSuccessResult(_ context.Context, in *codepipeline.PutJobSuccessResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	f.succeeded = append(f.succeeded, aws.ToString(in.JobId))
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

func (f *fakeAPI) PutJobFailureResult(_ context.Context, in *codepipeline.PutJobFailureResultInput, _ ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[aws.ToString(in.JobId)] = aws.ToString(in.FailureDetails.Message)
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

func TestSourceRepository(t *testing.T) {
	api := &fakeAPI{pipeline: &types.PipelineDeclaration{
		Stages: []types.StageDeclaration{{
			Actions: []types.ActionDeclaration{{Configuration: map[string]string{"RepositoryName": "manifest-demo"}}},
		}},
	}}
	c := NewCodePipelineCatalog(api)

	repo, err := c.SourceRepository(t.Context(), "r2ex-digital-twin")
	require.NoError(t, err)
	assert.Equal(t, "manifest-demo", repo)

	api.pipeline = &types.PipelineDeclaration{}
	repo, err = c.SourceRepository(t.Context(), "r2ex-digital-twin")
	require.NoError(t, err)
	assert.Empty(t, repo)

	api.err = &types.PipelineNotFoundException{Message: aws.String("nope")}
	_, err = c.SourceRepository(t.Context(), "missing")
	assert.ErrorIs(t, err, ferrors.ErrPipelineNotFound)
}

func TestExecution(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	api := &fakeAPI{execution: &types.PipelineExecution{
		Status: types.PipelineExecutionStatusSucceeded,
		ArtifactRevisions: []types.ArtifactRevision{
			{Name: aws.String("BuildArtifact"), RevisionId: aws.String("x")},
			{
				Name:        aws.String(SourceArtifactName),
				RevisionId:  aws.String("abc123"),
				RevisionUrl: aws.String("https://console.aws.amazon.com/codesuite/codecommit/repositories/manifest-demo/commit/abc123?region=ap-south-1"),
				Created:     &created,
			},
		},
	}}
	c := NewCodePipelineCatalog(api)

	exec, err := c.Execution(t.Context(), "r2ex-digital-twin", "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Succeeded", exec.Status)
	assert.Equal(t, created, exec.UpdatedAt)

	rev, ok := exec.SourceRevision()
	require.True(t, ok)
	assert.Equal(t, "abc123", rev.RevisionID)

	api.err = &types.PipelineExecutionNotFoundException{Message: aws.String("gone")}
	_, err = c.Execution(t.Context(), "r2ex-digital-twin", "e-2")
	assert.ErrorIs(t, err, ferrors.ErrPipelineNotFound)
}

func TestStartAndReport(t *testing.T) {
	api := &fakeAPI{}
	c := NewCodePipelineCatalog(api)

	id, err := c.StartExecution(t.Context(), "r2ex-digital-twin")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)
	assert.Equal(t, []string{"r2ex-digital-twin"}, api.started)

	require.NoError(t, c.ReportJob(t.Context(), "job-1", true, ""))
	require.NoError(t, c.ReportJob(t.Context(), "job-2", false, "command failed"))
	assert.Equal(t, []string{"job-1"}, api.succeeded)
	assert.Equal(t, "command failed", api.failed["job-2"])
}
