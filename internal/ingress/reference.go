package ingress

import (
	"encoding/json"
)

// EventReferenceUpdated is the only reference event that triggers a build.
const EventReferenceUpdated = "referenceUpdated"

// ReferenceUpdate is a push to a branch.
type ReferenceUpdate struct {
	Account        string `json:"account,omitempty"`
	Region         string `json:"region,omitempty"`
	RepositoryName string `json:"repositoryName"`
	ReferenceType  string `json:"referenceType"`
	ReferenceName  string `json:"referenceName"`
	Event          string `json:"event"`
	CommitID       string `json:"commitId"`
}

// Validate checks the required fields.
func (r ReferenceUpdate) Validate() error {
	return check(KindReferenceUpdate,
		requiredField{"repositoryName", r.RepositoryName},
		requiredField{"referenceName", r.ReferenceName},
		requiredField{"event", r.Event},
		requiredField{"commitId", r.CommitID},
	)
}

// IsBranchUpdate reports whether the event updated a branch head.
func (r ReferenceUpdate) IsBranchUpdate() bool {
	return r.Event == EventReferenceUpdated && (r.ReferenceType == "" || r.ReferenceType == "branch")
}

// DecodeReferenceUpdate accepts either a bus envelope with the update under
// "detail" or the bare detail object.
func DecodeReferenceUpdate(data []byte) (ReferenceUpdate, error) {
	var probe struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ReferenceUpdate{}, malformed(KindReferenceUpdate, err)
	}

	var ru ReferenceUpdate
	if len(probe.Detail) > 0 {
		env, err := decodeEnvelope(KindReferenceUpdate, data)
		if err != nil {
			return ReferenceUpdate{}, err
		}
		if err := json.Unmarshal(env.Detail, &ru); err != nil {
			return ReferenceUpdate{}, malformed(KindReferenceUpdate, err)
		}
		ru.Account, ru.Region = env.Account, env.Region
	} else if err := json.Unmarshal(data, &ru); err != nil {
		return ReferenceUpdate{}, malformed(KindReferenceUpdate, err)
	}

	if err := ru.Validate(); err != nil {
		return ReferenceUpdate{}, err
	}
	return ru, nil
}
