package correlation

import (
	"strings"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Record is the correlation triple. It is immutable once enqueued.
type Record struct {
	Branch     string `json:"branch"`
	Repository string `json:"repository"`
	CommitID   string `json:"commitId"`
}

// IsZero reports whether the record carries no correlation.
func (r Record) IsZero() bool {
	return r.Branch == "" && r.Repository == "" && r.CommitID == ""
}

// Encode renders the wire body "branch,repository,commitId". Fields are not
// escaped; a comma inside branch or repository cannot round-trip.
func (r Record) Encode() string {
	return r.Branch + "," + r.Repository + "," + r.CommitID
}

// Validate rejects records whose fields would not survive Encode/Decode.
func (r Record) Validate() error {
	fields := []struct{ name, value string }{
		{"branch", r.Branch},
		{"repository", r.Repository},
		{"commitId", r.CommitID},
	}
	for _, f := range fields {
		if f.value == "" {
			return ferrors.ValidationError("correlation record field is empty").WithContext("field", f.name).Build()
		}
	}
	if strings.Contains(r.Branch, ",") || strings.Contains(r.Repository, ",") {
		return ferrors.ValidationError("correlation record field contains a comma").Build()
	}
	return nil
}

// Decode parses a wire body. Anything after the second comma is the commit id.
func Decode(body string) (Record, error) {
	parts := strings.SplitN(body, ",", 3)
	if len(parts) != 3 {
		return Record{}, ferrors.ValidationError("malformed correlation body").
			WithContext("fields", len(parts)).
			Build()
	}
	return Record{Branch: parts[0], Repository: parts[1], CommitID: parts[2]}, nil
}
