package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/events"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/ingress"
)

const maxBody = 1 << 20

// AcceptedResponse acknowledges an event handed to the bus.
type AcceptedResponse struct {
	Status      string `json:"status"`
	Kind        string `json:"kind"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "could not read request body").Build()
	}
	return data, nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Uptime: time.Since(s.started).Seconds()})
}

func (s *Server) referenceUpdate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err == nil {
		var u ingress.ReferenceUpdate
		if u, err = ingress.DecodeReferenceUpdate(data); err == nil {
			err = s.deps.Bus.Publish(r.Context(), events.ReferenceUpdated{Update: u, Source: "http", ReceivedAt: time.Now()})
		}
	}
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Kind: string(ingress.KindReferenceUpdate)})
}

func (s *Server) pipelineOutcome(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err == nil {
		var o ingress.PipelineOutcome
		if o, err = ingress.DecodePipelineOutcome(data); err == nil {
			err = s.deps.Bus.Publish(r.Context(), events.PipelineFinished{Outcome: o, Source: "http", ReceivedAt: time.Now()})
		}
	}
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Kind: string(ingress.KindPipelineOutcome)})
}

// job is the synchronous job API. Its failures are already erased to the
// generic processing error.
func (s *Server) job(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	req, err := ingress.DecodeJobRequest(data)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	resp, err := s.deps.Jobs.Handle(r.Context(), req)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submitExecution(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req ingress.JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.adapter.WriteErrorResponse(w, r, ferrors.WrapError(err, ferrors.CategoryValidation, "malformed execution request").Build())
		return
	}
	req.Command = ingress.CommandRun
	if err := req.Validate(); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}

	id := uuid.NewString()
	if err := s.deps.Bus.Publish(r.Context(), events.ExecutionRequested{
		ExecutionID: id,
		Request:     req,
		Source:      "http",
		ReceivedAt:  time.Now(),
	}); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Kind: string(ingress.KindJobRequest), ExecutionID: id})
}

func (s *Server) execution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, ok := s.deps.Executions.Get(id)
	if !ok {
		s.adapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "execution not found").
			WithContext("execution_id", id).
			Build())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
