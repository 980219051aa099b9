package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "r2ex"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	phaseDuration     *prom.HistogramVec
	phaseResults      *prom.CounterVec
	polls             *prom.CounterVec
	executionDuration prom.Histogram
	executionOutcome  *prom.CounterVec
	running           prom.Gauge
	enqueues          *prom.CounterVec
	dequeues          *prom.CounterVec
	notifications     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of workflow phases",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"phase"}),
		phaseResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "phase_results_total",
			Help:      "Workflow phase results by outcome",
		}, []string{"phase", "result"}),
		polls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status polls issued per phase",
		}, []string{"phase"}),
		executionDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Total workflow execution duration",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		executionOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "execution_outcomes_total",
			Help:      "Workflow executions by final status",
		}, []string{"outcome"}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running_executions",
			Help:      "Workflow executions currently in flight",
		}),
		enqueues: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "correlation_enqueues_total",
			Help:      "Branch events by enqueue result",
		}, []string{"result"}),
		dequeues: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "correlation_dequeues_total",
			Help:      "Correlation receives by result",
		}, []string{"result"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Build reports by delivery result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.phaseDuration, pr.phaseResults, pr.polls, pr.executionDuration,
		pr.executionOutcome, pr.running, pr.enqueues, pr.dequeues, pr.notifications)
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result ResultLabel) {
	if p == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPoll(phase string) {
	if p == nil {
		return
	}
	p.polls.WithLabelValues(phase).Inc()
}

func (p *PrometheusRecorder) ObserveExecutionDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.executionDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncExecutionOutcome(outcome string) {
	if p == nil {
		return
	}
	p.executionOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetRunningExecutions(n int) {
	if p == nil {
		return
	}
	p.running.Set(float64(n))
}

func (p *PrometheusRecorder) IncEnqueue(result string) {
	if p == nil {
		return
	}
	p.enqueues.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncDequeue(result string) {
	if p == nil {
		return
	}
	p.dequeues.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncNotification(result string) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(result).Inc()
}
