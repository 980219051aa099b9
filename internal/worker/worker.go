// Package worker controls the builder instance that executes build commands.
package worker

import (
	"context"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
)

// State is the builder lifecycle state as seen by the workflow.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

var nativeStates = foundation.NewNormalizer(map[string]State{
	"pending":       StatePending,
	"running":       StateRunning,
	"stopping":      StateStopping,
	"shutting-down": StateStopping,
	"stopped":       StateStopped,
}, StateFailed)

// MapNative converts a native instance state name. "terminated" and unknown
// values map to StateFailed since a terminated builder cannot be acquired.
func MapNative(native string) State { return nativeStates.Normalize(native) }

// Controller starts, stops and inspects builder instances.
type Controller interface {
	Start(ctx context.Context, instanceID string) error
	Stop(ctx context.Context, instanceID string) error
	State(ctx context.Context, instanceID string) (State, error)
}
