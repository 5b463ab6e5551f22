// Package metrics records operational metrics from ingest and validation
// runs behind a small backend interface. The default backend is a no-op, so
// recording is always safe; concrete systems (Prometheus Pushgateway,
// DogStatsD) live in subpackages and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by every backend.
const (
	StepTotal       = "tabload_step_total"
	StepDuration    = "tabload_step_duration_seconds"
	RowsTotal       = "tabload_rows_total"
	BatchesTotal    = "tabload_batches_total"
	ViolationsTotal = "tabload_violations_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a latency/duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordStep measures latency and outcome of one step (ingest, check_columns,
// check_values, ...).
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err == nil),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows increments the row counter for kind ("processed", "failed").
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatch counts one submitted batch and whether the sink accepted it.
func RecordBatch(job string, ok bool) {
	current().IncCounter(BatchesTotal, 1, Labels{
		"job":    job,
		"status": status(ok),
	})
}

// RecordViolations counts invalid values found in dataset.
func RecordViolations(job, dataset string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(ViolationsTotal, float64(n), Labels{
		"job":     job,
		"dataset": dataset,
	})
}
