package eventstore

import "time"

// Event is one recorded step of a workflow execution.
type Event interface {
	ID() int64
	ExecutionID() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID          int64
	EventExecutionID string
	EventType        string
	EventTimestamp   time.Time
	EventPayload     []byte
	EventMetadata    map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) ExecutionID() string         { return e.EventExecutionID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
