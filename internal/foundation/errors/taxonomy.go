package errors

// Sentinels for errors.Is checks. A ClassifiedError matches a sentinel when
// category and message agree, so constructors below keep messages fixed and
// put variable data into the context map.
var (
	ErrCorrelationMiss  = NewError(CategoryQueue, "no correlation record available").Build()
	ErrVariantNotFound  = NewError(CategoryNotFound, "variant not found").Build()
	ErrPipelineNotFound = NewError(CategoryPipeline, "pipeline not found").Build()
	ErrCommandNotFound  = NewError(CategoryNotFound, "command is not found").Build()
	ErrQueueUnavailable = NewError(CategoryQueue, "queue unavailable").Build()
	ErrProcessing       = NewError(CategoryInternal, "error processing a job").Build()
)

// ConfigurationError reports a missing or invalid required setting.
func ConfigurationError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction()
}

// ValidationError reports malformed input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).UserAction()
}

// CorrelationMiss reports a receive that timed out without a record.
func CorrelationMiss(queue string) *ClassifiedError {
	return NewError(CategoryQueue, ErrCorrelationMiss.Message()).
		Warning().
		WithContext("queue", queue).
		Build()
}

// VariantNotFound reports that no variant token matched subject.
func VariantNotFound(subject string) *ClassifiedError {
	return NewError(CategoryNotFound, ErrVariantNotFound.Message()).
		WithContext("subject", subject).
		Build()
}

// PipelineNotFound reports that a pipeline name did not resolve.
func PipelineNotFound(name string) *ClassifiedError {
	return NewError(CategoryPipeline, ErrPipelineNotFound.Message()).
		WithContext("pipeline", name).
		Build()
}

// CommandNotFound reports an unknown (commandId, instanceId) pair.
func CommandNotFound(commandID, instanceID string) *ClassifiedError {
	return NewError(CategoryNotFound, ErrCommandNotFound.Message()).
		WithContext("command_id", commandID).
		WithContext("instance_id", instanceID).
		Build()
}

// QueueUnavailable reports an unreachable queue transport.
func QueueUnavailable(queue string, cause error) *ClassifiedError {
	return WrapError(cause, CategoryQueue, ErrQueueUnavailable.Message()).
		Retryable().
		WithContext("queue", queue).
		Build()
}

// RemoteServiceError wraps a failed downstream API call.
func RemoteServiceError(category ErrorCategory, operation string, cause error) *ClassifiedError {
	return WrapError(cause, category, operation+" failed").
		Retryable().
		WithContext("operation", operation).
		Build()
}

// ProcessingError is the generic error returned from the outermost handler of
// a unit of work. The cause is deliberately not attached; callers log it first.
func ProcessingError() *ClassifiedError {
	return NewError(CategoryInternal, ErrProcessing.Message()).Build()
}
