// Package metrics records ledger engine activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one call per engine operation.
type Recorder interface {
	// ObserveOperation records an operation outcome, as classified by
	// domain.ClassifyError, and its latency.
	ObserveOperation(operation, outcome string, d time.Duration)
	// ObserveOrphanLeg records a transfer leg whose sibling could not be found.
	ObserveOrphanLeg(operation string)
	// ObserveBulkItem records the fate of one id in a bulk request.
	ObserveBulkItem(operation, result string)
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) ObserveOperation(operation, outcome string, d time.Duration) {}
func (NoOp) ObserveOrphanLeg(operation string) {}
func (NoOp) ObserveBulkItem(operation, result string) {}

// Prometheus implements Recorder with Prometheus collectors.
type Prometheus struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	orphans    *prometheus.CounterVec
	bulkItems  *prometheus.CounterVec
}

// NewPrometheus creates the collectors under namespace. They are not
// registered until Register is called.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Ledger operation latency including the atomic group",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation"},
		),
		orphans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphan_legs_total",
				Help:      "Transfer legs processed without their sibling",
			},
			[]string{"operation"},
		),
		bulkItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_items_total",
				Help:      "Ids processed by bulk operations, by result",
			},
			[]string{"operation", "result"},
		),
	}
}

// Register registers all collectors with reg.
func (p *Prometheus) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.operations, p.latency, p.orphans, p.bulkItems} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prometheus) ObserveOperation(operation, outcome string, d time.Duration) {
	p.operations.WithLabelValues(operation, outcome).Inc()
	p.latency.WithLabelValues(operation).Observe(d.Seconds())
}

func (p *Prometheus) ObserveOrphanLeg(operation string) {
	p.orphans.WithLabelValues(operation).Inc()
}

func (p *Prometheus) ObserveBulkItem(operation, result string) {
	p.bulkItems.WithLabelValues(operation, result).Inc()
}
