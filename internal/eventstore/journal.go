package eventstore

import "context"

// Journal appends events and keeps a projection current.
type Journal struct {
	store      Store
	projection *ExecutionProjection
}

// NewJournal pairs store with projection. projection may be nil.
func NewJournal(store Store, projection *ExecutionProjection) *Journal {
	return &Journal{store: store, projection: projection}
}

// Record appends e and, once stored, applies it to the projection.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if err := j.store.Append(ctx, e); err != nil {
		return err
	}
	if j.projection != nil {
		j.projection.Apply(e)
	}
	return nil
}

// Projection returns the projection kept by Record.
func (j *Journal) Projection() *ExecutionProjection { return j.projection }
