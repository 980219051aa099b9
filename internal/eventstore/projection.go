// Package eventstore records workflow executions as an append-only event log
// and projects them into per-execution summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// StatusRunning marks an execution without an ExecutionCompleted event.
const StatusRunning = "running"

// PhaseSummary is one finished phase.
type PhaseSummary struct {
	Phase    string        `json:"phase"`
	Result   string        `json:"result"`
	Polls    int           `json:"polls"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExecutionSummary is the read model of one execution.
type ExecutionSummary struct {
	ExecutionID         string         `json:"execution_id"`
	Pipeline            string         `json:"pipeline,omitempty"`
	PipelineExecutionID string         `json:"pipeline_execution_id,omitempty"`
	JobID               string         `json:"job_id,omitempty"`
	InstanceID          string         `json:"instance_id,omitempty"`
	CommandID           string         `json:"command_id,omitempty"`
	Status              string         `json:"status"` // running, succeeded, failed, timed_out
	StartedAt           time.Time      `json:"started_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	Duration            time.Duration  `json:"duration,omitempty"`
	Phases              []PhaseSummary `json:"phases,omitempty"`
	FailedPhase         string         `json:"failed_phase,omitempty"`
	Message             string         `json:"message,omitempty"`
}

// ExecutionProjection keeps summaries of running executions and a bounded
// history of completed ones.
type ExecutionProjection struct {
	mu         sync.RWMutex
	store      Store
	executions map[string]*ExecutionSummary
	history    []*ExecutionSummary // newest first
	maxSize    int
	lastSync   time.Time
}

// NewExecutionProjection creates a projection backed by store.
func NewExecutionProjection(store Store, maxHistorySize int) *ExecutionProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &ExecutionProjection{
		store:      store,
		executions: make(map[string]*ExecutionSummary),
		maxSize:    maxHistorySize,
	}
}

// Rebuild replays every stored event. It is called once at startup.
func (p *ExecutionProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.Range(ctx, time.Unix(0, 0), time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.executions = make(map[string]*ExecutionSummary)
	p.history = nil
	for _, e := range events {
		p.applyLocked(e)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply folds one event into the projection.
func (p *ExecutionProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *ExecutionProjection) applyLocked(e Event) {
	id := e.ExecutionID()
	if id == "" {
		return
	}
	s, ok := p.executions[id]
	if !ok {
		s = &ExecutionSummary{ExecutionID: id, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.executions[id] = s
	}

	switch e.Type() {
	case TypeExecutionStarted:
		s.StartedAt = e.Timestamp()
		var meta StartedMeta
		if err := json.Unmarshal(e.Payload(), &meta); err == nil {
			s.Pipeline = meta.Pipeline
			s.PipelineExecutionID = meta.PipelineExecutionID
			s.JobID = meta.JobID
			s.InstanceID = meta.InstanceID
		}

	case TypeCommandDispatched:
		var payload struct {
			CommandID string `json:"command_id"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			s.CommandID = payload.CommandID
		}

	case TypePhaseFinished:
		var payload struct {
			Phase      string `json:"phase"`
			Result     string `json:"result"`
			Polls      int    `json:"polls"`
			DurationMS int64  `json:"duration_ms"`
			Error      string `json:"error"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			s.Phases = append(s.Phases, PhaseSummary{
				Phase:    payload.Phase,
				Result:   payload.Result,
				Polls:    payload.Polls,
				Duration: time.Duration(payload.DurationMS) * time.Millisecond,
				Error:    payload.Error,
			})
		}

	case TypeExecutionCompleted:
		at := e.Timestamp()
		s.CompletedAt = &at
		s.Duration = at.Sub(s.StartedAt)
		s.Status = OutcomeFailed
		var payload struct {
			Outcome     string `json:"outcome"`
			FailedPhase string `json:"failed_phase"`
			Message     string `json:"message"`
		}
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			if payload.Outcome != "" {
				s.Status = payload.Outcome
			}
			s.FailedPhase = payload.FailedPhase
			s.Message = payload.Message
		}
		p.addToHistoryLocked(s)
	}
}

func (p *ExecutionProjection) addToHistoryLocked(s *ExecutionSummary) {
	for _, h := range p.history {
		if h.ExecutionID == s.ExecutionID {
			return
		}
	}
	p.history = append([]*ExecutionSummary{s}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops completed executions that fell out of history.
func (p *ExecutionProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.ExecutionID] = struct{}{}
	}
	for id, s := range p.executions {
		if s.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.executions, id)
		}
	}
}

// Get returns a copy of one execution's summary.
func (p *ExecutionProjection) Get(executionID string) (ExecutionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.executions[executionID]
	if !ok {
		return ExecutionSummary{}, false
	}
	return s.clone(), true
}

// History returns completed executions, newest first.
func (p *ExecutionProjection) History() []ExecutionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ExecutionSummary, 0, len(p.history))
	for _, s := range p.history {
		out = append(out, s.clone())
	}
	return out
}

// RunningSince returns running executions started before cutoff.
func (p *ExecutionProjection) RunningSince(cutoff time.Time) []ExecutionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []ExecutionSummary
	for _, s := range p.executions {
		if s.Status == StatusRunning && s.StartedAt.Before(cutoff) {
			out = append(out, s.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// LastSyncTime returns when Rebuild last ran.
func (p *ExecutionProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

func (s *ExecutionSummary) clone() ExecutionSummary {
	cp := *s
	cp.Phases = append([]PhaseSummary(nil), s.Phases...)
	return cp
}
