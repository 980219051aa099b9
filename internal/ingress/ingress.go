// Package ingress decodes and validates the events that drive the pipeline:
// reference updates from source control, pipeline outcomes, and job requests.
// Every decoder fails with a named validation error listing the missing
// fields rather than letting a malformed payload reach business logic.
package ingress

import (
	"encoding/json"
	"sort"
	"strings"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Kind names an ingress event type.
type Kind string

const (
	KindReferenceUpdate Kind = "reference_update"
	KindPipelineOutcome Kind = "pipeline_outcome"
	KindJobRequest      Kind = "job_request"
)

// envelope is the event-bus wrapper shared by bus-delivered events.
type envelope struct {
	Account    string          `json:"account"`
	Region     string          `json:"region"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
}

func decodeEnvelope(kind Kind, data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, malformed(kind, err)
	}
	if len(env.Detail) == 0 || string(env.Detail) == "null" {
		return envelope{}, missing(kind, []string{"detail"})
	}
	return env, nil
}

func malformed(kind Kind, cause error) error {
	return ferrors.WrapError(cause, ferrors.CategoryValidation, "malformed event").
		UserAction().
		WithContext("kind", string(kind)).
		Build()
}

func missing(kind Kind, fields []string) error {
	sort.Strings(fields)
	return ferrors.ValidationError("event is missing required fields").
		WithContext("kind", string(kind)).
		WithContext("missing", fields).
		Build()
}

type requiredField struct {
	name  string
	value string
}

func check(kind Kind, fields ...requiredField) error {
	var absent []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			absent = append(absent, f.name)
		}
	}
	if len(absent) > 0 {
		return missing(kind, absent)
	}
	return nil
}
