package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/command"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/events"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/eventstore"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/jobapi"
)

type recordingBus struct {
	mu        sync.Mutex
	published []any
	err       error
}

func (b *recordingBus) Publish(_ context.Context, evt any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, evt)
	return nil
}

type fakeJobs struct {
	got  ingress.JobRequest
	resp jobapi.Response
	err  error
}

func (f *fakeJobs) Handle(_ context.Context, req ingress.JobRequest) (jobapi.Response, error) {
	f.got = req
	return f.resp, f.err
}

type fakeExecutions map[string]eventstore.ExecutionSummary

func (f fakeExecutions) Get(id string) (eventstore.ExecutionSummary, bool) {
	s, ok := f[id]
	return s, ok
}

func newTestServer(bus *recordingBus, jobs *fakeJobs, execs fakeExecutions) *Server {
	return New(Deps{
		Bus:        bus,
		Jobs:       jobs,
		Executions: execs,
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "metrics") }),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&recordingBus{}, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestReferenceUpdatePublishes(t *testing.T) {
	bus := &recordingBus{}
	s := newTestServer(bus, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodPost, "/events/reference-updates", `{"detail":{
		"event":"referenceUpdated","repositoryName":"manifest-repo",
		"referenceType":"branch","referenceName":"release/DigitalTwin_DT12","commitId":"c0ffee"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, bus.published, 1)
	evt, ok := bus.published[0].(events.ReferenceUpdated)
	require.True(t, ok)
	assert.Equal(t, "release/DigitalTwin_DT12", evt.Update.ReferenceName)
	assert.Equal(t, "http", evt.Source)
}

func TestReferenceUpdateRejectsMissingFields(t *testing.T) {
	bus := &recordingBus{}
	s := newTestServer(bus, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodPost, "/events/reference-updates", `{"detail":{"event":"referenceUpdated"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, bus.published)
}

func TestPipelineOutcomePublishes(t *testing.T) {
	bus := &recordingBus{}
	s := newTestServer(bus, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodPost, "/events/pipeline-outcomes",
		`{"detail":{"pipeline":"r2ex-digital-twin","execution-id":"e-1","state":"FAILED"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, bus.published, 1)
	evt := bus.published[0].(events.PipelineFinished)
	assert.Equal(t, ingress.OutcomeFailed, evt.Outcome.State)

	rec = do(t, s, http.MethodPost, "/events/pipeline-outcomes",
		`{"detail":{"pipeline":"p","execution-id":"e","state":"InProgress"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishFailureIsServerError(t *testing.T) {
	bus := &recordingBus{err: errors.New("bus closed")}
	s := newTestServer(bus, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodPost, "/events/pipeline-outcomes",
		`{"detail":{"pipeline":"p","execution-id":"e","state":"SUCCEEDED"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "error processing a job")
}

func TestJobEndpoint(t *testing.T) {
	jobs := &fakeJobs{resp: jobapi.Response{CommandID: "cmd-1", Status: command.StatusInProgress}}
	s := newTestServer(&recordingBus{}, jobs, nil)

	rec := do(t, s, http.MethodPost, "/jobs", `{"command":"status","commandId":"cmd-1","instanceId":"i-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cmd-1", jobs.got.CommandID)
	assert.JSONEq(t, `{"commandId":"cmd-1","status":"IN PROGRESS"}`, rec.Body.String())

	jobs.err = ferrors.ProcessingError()
	rec = do(t, s, http.MethodPost, "/jobs", `{"command":"status","commandId":"cmd-1","instanceId":"i-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, s, http.MethodPost, "/jobs", `{"command":"reboot","instanceId":"i-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitExecution(t *testing.T) {
	bus := &recordingBus{}
	s := newTestServer(bus, &fakeJobs{}, nil)

	rec := do(t, s, http.MethodPost, "/executions", `{
		"instanceId":"i-1","commandText":"make","pipelineName":"r2ex-digital-twin","executionId":"pe-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp AcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ExecutionID)

	require.Len(t, bus.published, 1)
	evt := bus.published[0].(events.ExecutionRequested)
	assert.Equal(t, resp.ExecutionID, evt.ExecutionID)
	assert.Equal(t, ingress.CommandRun, evt.Request.Command)

	rec = do(t, s, http.MethodPost, "/executions", `{"instanceId":"i-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExecution(t *testing.T) {
	execs := fakeExecutions{"x-1": {ExecutionID: "x-1", Status: "running", StartedAt: time.Unix(0, 0).UTC()}}
	s := newTestServer(&recordingBus{}, &fakeJobs{}, execs)

	rec := do(t, s, http.MethodGet, "/executions/x-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got eventstore.ExecutionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "running", got.Status)

	rec = do(t, s, http.MethodGet, "/executions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := recovery(logger, ferrors.NewHTTPErrorAdapter(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
