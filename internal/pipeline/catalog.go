// Package pipeline reads pipeline definitions and executions and reports
// job results back to the pipeline service.
package pipeline

import (
	"context"
	"time"
)

// SourceArtifactName is the artifact carrying the source revision.
const SourceArtifactName = "SourceArtifact"

// Revision is one artifact revision recorded on an execution.
type Revision struct {
	Name        string
	RevisionID  string
	RevisionURL string
}

// Execution is a pipeline execution snapshot.
type Execution struct {
	Pipeline  string
	ID        string
	Status    string
	Revisions []Revision
	UpdatedAt time.Time
}

// SourceRevision returns the revision of the source artifact.
func (e Execution) SourceRevision() (Revision, bool) {
	for _, r := range e.Revisions {
		if r.Name == SourceArtifactName {
			return r, true
		}
	}
	return Revision{}, false
}

// Catalog is the pipeline service.
type Catalog interface {
	// SourceRepository returns the repository configured on the first action
	// of the first stage, or "" when the definition does not name one.
	SourceRepository(ctx context.Context, pipeline string) (string, error)
	Execution(ctx context.Context, pipeline, executionID string) (Execution, error)
	StartExecution(ctx context.Context, pipeline string) (string, error)
	// ReportJob marks a custom-action job as succeeded or failed.
	ReportJob(ctx context.Context, jobID string, success bool, message string) error
}
