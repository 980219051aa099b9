package eventstore

import (
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.NewError(ferrors.CategoryStorage, "could not open event store database").Build()

	// ErrInitializeSchemaFailed indicates the schema could not be created.
	ErrInitializeSchemaFailed = ferrors.NewError(ferrors.CategoryStorage, "failed to initialize event store schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = ferrors.NewError(ferrors.CategoryStorage, "failed to append event to store").Retryable().Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = ferrors.NewError(ferrors.CategoryStorage, "failed to query events from store").Build()

	// ErrMarshalPayloadFailed indicates an event payload could not be encoded.
	ErrMarshalPayloadFailed = ferrors.NewError(ferrors.CategoryInternal, "failed to marshal event payload").Build()
)

// wrap attaches cause to a sentinel while keeping errors.Is matching.
func wrap(sentinel *ferrors.ClassifiedError, cause error) error {
	return ferrors.WrapError(cause, sentinel.Category(), sentinel.Message()).Build()
}
