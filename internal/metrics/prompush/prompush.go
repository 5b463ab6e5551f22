// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Collectors live in a private registry that is pushed to
// the gateway on Flush, grouped under the job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"tabload/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter      *prometheus.CounterVec // step, status
	stepDuration     *prometheus.SummaryVec // step, status
	rowCounter       *prometheus.CounterVec // kind
	batchCounter     *prometheus.CounterVec // status
	violationCounter *prometheus.CounterVec // dataset
}

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "tabload".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "tabload"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Step executions partitioned by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Step duration in seconds partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows per kind (processed, failed).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches submitted to the sink partitioned by status.",
		}, []string{"status"}),
		violationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ViolationsTotal,
			Help: "Invalid values found per dataset.",
		}, []string{"dataset"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":      b.stepCounter,
		"step summary":      b.stepDuration,
		"row counter":       b.rowCounter,
		"batch counter":     b.batchCounter,
		"violation counter": b.violationCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	var (
		vec *prometheus.CounterVec
		lv  []string
	)
	switch name {
	case metrics.StepTotal:
		vec, lv = b.stepCounter, []string{labels["step"], labels["status"]}
	case metrics.RowsTotal:
		vec, lv = b.rowCounter, []string{labels["kind"]}
	case metrics.BatchesTotal:
		vec, lv = b.batchCounter, []string{labels["status"]}
	case metrics.ViolationsTotal:
		vec, lv = b.violationCounter, []string{labels["dataset"]}
	}
	if vec == nil {
		return
	}
	vec.WithLabelValues(lv...).Add(delta)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
