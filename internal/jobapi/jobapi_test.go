package jobapi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/correlation/memqueue"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/pipeline"
)

type fakeCatalog struct {
	repo string
	err  error
}

func (f *fakeCatalog) SourceRepository(context.Context, string) (string, error) { return f.repo, f.err }
func (f *fakeCatalog) Execution(context.Context, string, string) (pipeline.Execution, error) {
	return pipeline.Execution{}, nil
}
func (f *fakeCatalog) StartExecution(context.Context, string) (string, error) { return "", nil }
func (f *fakeCatalog) ReportJob(context.Context, string, bool, string) error  { return nil }

type fakeCommands struct {
	sent    []command.Invocation
	native  map[string]string
	sendErr error
}

func (f *fakeCommands) Send(_ context.Context, inv command.Invocation) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, inv)
	return "cmd-1", nil
}

func (f *fakeCommands) Lookup(_ context.Context, commandID, _ string) (foundation.Option[string], error) {
	if s, ok := f.native[commandID]; ok {
		return foundation.Some(s), nil
	}
	return foundation.None[string](), nil
}

func runRequest() ingress.JobRequest {
	return ingress.JobRequest{
		Command:          ingress.CommandRun,
		InstanceID:       "i-0abc",
		CommandText:      "./build.sh",
		Timeout:          3600,
		WorkingDirectory: "/opt/build",
		InputBucketName:  "artifacts",
		InputObjectKey:   "in/source.zip",
		ExecutionID:      "exec-1",
		PipelineName:     "dt-build",
	}
}

func newDispatcher(q *memqueue.Queue, catalog *fakeCatalog, cmds *fakeCommands, ack bool) *Dispatcher {
	return New(correlation.Routes{{Token: "dt-build", Queue: q}}, catalog, cmds, nil, Settings{
		DocumentName:  "BuildDocument",
		ReceiveWait:   1,
		AckOnDispatch: ack,
	})
}

func TestRunSendsMergedParameters(t *testing.T) {
	q := memqueue.New("r2ex")
	_, err := q.Enqueue(context.Background(), correlation.Record{Branch: "release/DigitalTwin_DT12", Repository: "dt-platform", CommitID: "abc"}, "release/DigitalTwin_DT12", "d1")
	require.NoError(t, err)
	cmds := &fakeCommands{}
	d := newDispatcher(q, &fakeCatalog{repo: "dt-platform"}, cmds, false)

	resp, err := d.Handle(context.Background(), runRequest())
	require.NoError(t, err)
	assert.Equal(t, Response{CommandID: "cmd-1", Status: command.StatusInProgress}, resp)

	require.Len(t, cmds.sent, 1)
	inv := cmds.sent[0]
	assert.Equal(t, "i-0abc", inv.InstanceID)
	assert.Equal(t, "BuildDocument", inv.DocumentName)
	assert.Equal(t, []string{"./build.sh"}, inv.Parameters["commands"])
	assert.Equal(t, []string{"3600"}, inv.Parameters["executionTimeout"])
	assert.Equal(t, []string{"branch_name"}, inv.Parameters["branchVarName"])
	assert.Equal(t, []string{"release/DigitalTwin_DT12"}, inv.Parameters["branchVarValue"])
	assert.Equal(t, []string{"repository_name"}, inv.Parameters["repoVarName"])
	assert.Equal(t, []string{"dt-platform"}, inv.Parameters["repoVarValue"])
	assert.Len(t, inv.Parameters, 15)
}

func TestRunWithoutRecordProceedsEmpty(t *testing.T) {
	cmds := &fakeCommands{}
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{}, cmds, false)

	resp, err := d.Run(context.Background(), runRequest())
	require.NoError(t, err)
	assert.Equal(t, command.StatusInProgress, resp.Status)
	require.Len(t, cmds.sent, 1)
	assert.Equal(t, []string{""}, cmds.sent[0].Parameters["branchVarValue"])
	assert.Equal(t, []string{""}, cmds.sent[0].Parameters["repoVarValue"])
}

func TestRunOmitsZeroTimeout(t *testing.T) {
	cmds := &fakeCommands{}
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{}, cmds, false)
	req := runRequest()
	req.Timeout = 0

	_, err := d.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, cmds.sent, 1)
	assert.NotContains(t, cmds.sent[0].Parameters, "executionTimeout")
	assert.Len(t, cmds.sent[0].Parameters, 14)
}

func TestRunFallsBackToPipelineRepository(t *testing.T) {
	cmds := &fakeCommands{}
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{repo: "dt-platform"}, cmds, false)

	_, err := d.Run(context.Background(), runRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"dt-platform"}, cmds.sent[0].Parameters["repoVarValue"])
}

func TestRunAcknowledgement(t *testing.T) {
	for _, ack := range []bool{false, true} {
		q := memqueue.New("r2ex", memqueue.WithVisibilityTimeout(0))
		_, err := q.Enqueue(context.Background(), correlation.Record{Branch: "release/x", Repository: "r", CommitID: "c"}, "release/x", "d1")
		require.NoError(t, err)
		d := newDispatcher(q, &fakeCatalog{}, &fakeCommands{}, ack)

		_, err = d.Run(context.Background(), runRequest())
		require.NoError(t, err)

		next, err := q.Dequeue(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, !ack, next.IsSome(), "ack=%v", ack)
	}
}

func TestRunErrorsAreErased(t *testing.T) {
	cmds := &fakeCommands{sendErr: ferrors.RemoteServiceError(ferrors.CategoryCommand, "send command", errors.New("throttled"))}
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{}, cmds, false)

	_, err := d.Run(context.Background(), runRequest())
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCommand))

	_, err = d.Handle(context.Background(), runRequest())
	assert.ErrorIs(t, err, ferrors.ErrProcessing)
}

func TestRunUnknownPipelineIsConfigurationError(t *testing.T) {
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{}, &fakeCommands{}, false)
	req := runRequest()
	req.PipelineName = "other"

	_, err := d.Run(context.Background(), req)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestStatus(t *testing.T) {
	cmds := &fakeCommands{native: map[string]string{"c-ok": "Success", "c-run": "Pending", "c-bad": "TimedOut"}}
	d := newDispatcher(memqueue.New("r2ex"), &fakeCatalog{}, cmds, false)

	cases := map[string]command.Status{
		"c-ok":  command.StatusSuccess,
		"c-run": command.StatusInProgress,
		"c-bad": command.StatusFailed,
	}
	for id, want := range cases {
		resp, err := d.Status(context.Background(), id, "i-0abc")
		require.NoError(t, err)
		assert.Equal(t, want, resp.Status, id)
	}

	_, err := d.Status(context.Background(), "c-missing", "i-0abc")
	assert.ErrorIs(t, err, ferrors.ErrCommandNotFound)

	_, err = d.Handle(context.Background(), ingress.JobRequest{Command: ingress.CommandStatus, CommandID: "c-missing", InstanceID: "i-0abc"})
	assert.ErrorIs(t, err, ferrors.ErrProcessing)
}
