package metrics

import "time"

// ResultLabel enumerates phase result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultTimedOut ResultLabel = "timed_out"
	ResultSkipped  ResultLabel = "skipped"
)

// Recorder defines observability hooks for the trigger, queue, workflow and
// notification paths. NoopRecorder is the default.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	IncPhaseResult(phase string, result ResultLabel)
	IncPoll(phase string)
	ObserveExecutionDuration(d time.Duration)
	IncExecutionOutcome(outcome string)
	SetRunningExecutions(n int)
	IncEnqueue(result string) // enqueued|duplicate|declined|failed
	IncDequeue(result string) // received|empty|duplicate|failed
	IncNotification(result string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncPhaseResult(string, ResultLabel)         {}
func (NoopRecorder) IncPoll(string)                             {}
func (NoopRecorder) ObserveExecutionDuration(time.Duration)     {}
func (NoopRecorder) IncExecutionOutcome(string)                 {}
func (NoopRecorder) SetRunningExecutions(int)                   {}
func (NoopRecorder) IncEnqueue(string)                          {}
func (NoopRecorder) IncDequeue(string)                          {}
func (NoopRecorder) IncNotification(string)                     {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
