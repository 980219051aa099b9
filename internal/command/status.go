// Package command dispatches build commands to a remote worker and reads
// their status back.
package command

import "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"

// Status is the three-valued command state seen by the workflow.
type Status string

const (
	StatusInProgress Status = "IN PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether s ends polling.
func (s Status) Terminal() bool { return s != StatusInProgress }

// nativeStatuses covers the remote service's command states. Every value not
// listed (Cancelled, TimedOut, Failed, Cancelling, unknown future values)
// is a failure.
var nativeStatuses = foundation.NewNormalizer(map[string]Status{
	"Pending":    StatusInProgress,
	"InProgress": StatusInProgress,
	"Success":    StatusSuccess,
}, StatusFailed)

// MapNative converts a native command status.
func MapNative(native string) Status {
	return nativeStatuses.Normalize(native)
}

// ParseStatus reads a Status from its wire form.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusInProgress, StatusSuccess, StatusFailed:
		return Status(s), true
	}
	return "", false
}
