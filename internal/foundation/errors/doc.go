// Package errors provides the classified error type used across the pipeline.
//
// Every error that crosses a component boundary is a ClassifiedError carrying a
// category (what failed), a severity (how bad) and a retry strategy (what a
// caller may do about it). Outer handlers use the category to choose an HTTP
// status or process exit code and to decide whether the cause may be exposed.
//
//	err := errors.WrapError(cause, errors.CategoryQueue, "receive failed").
//		WithContext("queue", url).
//		Retryable().
//		Build()
package errors
