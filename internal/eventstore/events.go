package eventstore

import (
	"encoding/json"
	"time"
)

// Event type names.
const (
	TypeExecutionStarted   = "ExecutionStarted"
	TypePhaseFinished      = "PhaseFinished"
	TypeCommandDispatched  = "CommandDispatched"
	TypeExecutionCompleted = "ExecutionCompleted"
)

// Execution outcomes recorded by ExecutionCompleted.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

func newBase(executionID, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, wrap(ErrMarshalPayloadFailed, err)
	}
	return BaseEvent{
		EventExecutionID: executionID,
		EventType:        eventType,
		EventTimestamp:   time.Now(),
		EventPayload:     data,
	}, nil
}

// StartedMeta describes what an execution was asked to build.
type StartedMeta struct {
	Pipeline            string `json:"pipeline"`
	PipelineExecutionID string `json:"pipeline_execution_id,omitempty"`
	JobID               string `json:"job_id,omitempty"`
	InstanceID          string `json:"instance_id"`
}

// ExecutionStarted is recorded when the runner picks up an execution.
type ExecutionStarted struct {
	BaseEvent
	Meta StartedMeta
}

// NewExecutionStarted creates an ExecutionStarted event.
func NewExecutionStarted(executionID string, meta StartedMeta) (*ExecutionStarted, error) {
	base, err := newBase(executionID, TypeExecutionStarted, meta)
	if err != nil {
		return nil, err
	}
	return &ExecutionStarted{BaseEvent: base, Meta: meta}, nil
}

// PhaseFinished is recorded once per phase that ran.
type PhaseFinished struct {
	BaseEvent
	Phase    string
	Result   string
	Polls    int
	Duration time.Duration
	Error    string
}

// NewPhaseFinished creates a PhaseFinished event.
func NewPhaseFinished(executionID, phase, result string, polls int, duration time.Duration, errMsg string) (*PhaseFinished, error) {
	base, err := newBase(executionID, TypePhaseFinished, map[string]any{
		"phase":       phase,
		"result":      result,
		"polls":       polls,
		"duration_ms": duration.Milliseconds(),
		"error":       errMsg,
	})
	if err != nil {
		return nil, err
	}
	return &PhaseFinished{BaseEvent: base, Phase: phase, Result: result, Polls: polls, Duration: duration, Error: errMsg}, nil
}

// CommandDispatched is recorded when the build command was accepted.
type CommandDispatched struct {
	BaseEvent
	CommandID  string
	InstanceID string
}

// NewCommandDispatched creates a CommandDispatched event.
func NewCommandDispatched(executionID, commandID, instanceID string) (*CommandDispatched, error) {
	base, err := newBase(executionID, TypeCommandDispatched, map[string]string{
		"command_id":  commandID,
		"instance_id": instanceID,
	})
	if err != nil {
		return nil, err
	}
	return &CommandDispatched{BaseEvent: base, CommandID: commandID, InstanceID: instanceID}, nil
}

// ExecutionCompleted is the single terminal event of an execution.
type ExecutionCompleted struct {
	BaseEvent
	Outcome     string
	FailedPhase string
	Message     string
	Duration    time.Duration
}

// NewExecutionCompleted creates an ExecutionCompleted event.
func NewExecutionCompleted(executionID, outcome, failedPhase, message string, duration time.Duration) (*ExecutionCompleted, error) {
	base, err := newBase(executionID, TypeExecutionCompleted, map[string]any{
		"outcome":      outcome,
		"failed_phase": failedPhase,
		"message":      message,
		"duration_ms":  duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &ExecutionCompleted{
		BaseEvent:   base,
		Outcome:     outcome,
		FailedPhase: failedPhase,
		Message:     message,
		Duration:    duration,
	}, nil
}
