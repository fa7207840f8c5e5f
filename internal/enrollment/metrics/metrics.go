package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enrollment state machine.
type Metrics struct {
	Operations       *prometheus.CounterVec
	RecordsCommitted prometheus.Counter
	CommitDuration   prometheus.Histogram
	VerifyDuration   prometheus.Histogram
}

// New registers the enrollment metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "farmerid_enrollment_operations_total",
			Help: "State machine operations by operation and outcome (ok or error kind)",
		}, []string{"operation", "outcome"}),
		RecordsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "farmerid_records_committed_total",
			Help: "Total number of enrollment records committed",
		}),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmerid_commit_duration_seconds",
			Help:    "Duration of commit operations including sequence allocation and persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmerid_verify_duration_seconds",
			Help:    "Duration of credential verification",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementRecordsCommitted() {
	m.RecordsCommitted.Inc()
}

// ObserveCommit records the duration of a commit.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCommit(start time.Time) {
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
