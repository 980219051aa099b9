package ingress

import (
	"encoding/json"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
)

// OutcomeState is the terminal state of a pipeline execution as reported by
// the notifier: success, failure, or stopped.
type OutcomeState string

const (
	OutcomeSucceeded OutcomeState = "Succeeded"
	OutcomeFailed    OutcomeState = "Failed"
	OutcomeStopped   OutcomeState = "Stopped"
)

// IsSuccess reports whether the outcome is a successful build.
func (s OutcomeState) IsSuccess() bool { return s == OutcomeSucceeded }

// outcomeStates folds event-bus states (upper case) and pipeline service
// states (title case) onto the three terminal values. Anything not listed,
// including in-flight states, is not terminal.
var outcomeStates = foundation.NewNormalizer(map[string]OutcomeState{
	"SUCCEEDED":  OutcomeSucceeded,
	"FAILED":     OutcomeFailed,
	"STOPPED":    OutcomeStopped,
	"STOPPING":   OutcomeStopped,
	"CANCELED":   OutcomeStopped,
	"CANCELLED":  OutcomeStopped,
	"SUPERSEDED": OutcomeStopped,
}, "")

// ParseOutcomeState maps a raw state to a terminal state.
func ParseOutcomeState(raw string) (OutcomeState, bool) {
	return outcomeStates.Lookup(raw)
}

// PipelineOutcome is a pipeline execution reaching a terminal state.
type PipelineOutcome struct {
	Account     string
	Region      string
	Pipeline    string
	ExecutionID string
	State       OutcomeState
	RawState    string
}

type outcomeDetail struct {
	Pipeline    string `json:"pipeline"`
	ExecutionID string `json:"execution-id"`
	State       string `json:"state"`
}

// Validate checks the required fields.
func (o PipelineOutcome) Validate() error {
	return check(KindPipelineOutcome,
		requiredField{"detail.pipeline", o.Pipeline},
		requiredField{"detail.execution-id", o.ExecutionID},
		requiredField{"detail.state", o.RawState},
	)
}

// DecodePipelineOutcome decodes an execution state-change event. A
// non-terminal state is a validation error.
func DecodePipelineOutcome(data []byte) (PipelineOutcome, error) {
	env, err := decodeEnvelope(KindPipelineOutcome, data)
	if err != nil {
		return PipelineOutcome{}, err
	}
	var d outcomeDetail
	if err := json.Unmarshal(env.Detail, &d); err != nil {
		return PipelineOutcome{}, malformed(KindPipelineOutcome, err)
	}

	out := PipelineOutcome{
		Account:     env.Account,
		Region:      env.Region,
		Pipeline:    d.Pipeline,
		ExecutionID: d.ExecutionID,
		RawState:    d.State,
	}
	if err := out.Validate(); err != nil {
		return PipelineOutcome{}, err
	}
	state, ok := ParseOutcomeState(d.State)
	if !ok {
		return PipelineOutcome{}, malformed(KindPipelineOutcome, errNotTerminal(d.State))
	}
	out.State = state
	return out, nil
}

type errNotTerminal string

func (e errNotTerminal) Error() string { return "state " + string(e) + " is not terminal" }
