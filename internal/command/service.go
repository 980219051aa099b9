package command

import (
	"context"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
)

// Invocation is one command sent to one worker.
type Invocation struct {
	InstanceID   string
	DocumentName string
	Parameters   map[string][]string
	Comment      string
}

// Service is the remote command service.
type Service interface {
	// Send starts the invocation and returns the command id. It is never
	// retried automatically.
	Send(ctx context.Context, inv Invocation) (string, error)
	// Lookup returns the native status of (commandID, instanceID), or None
	// when the service knows no such command.
	Lookup(ctx context.Context, commandID, instanceID string) (foundation.Option[string], error)
}
