package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module. Tracks registration
// and attendance volumes plus critical path durations.
type Metrics struct {
	AccountsRegistered     prometheus.Counter
	AttendanceMarked       prometheus.Counter
	Checkouts              prometheus.Counter
	RejectedOperations     *prometheus.CounterVec
	MarkAttendanceDuration prometheus.Histogram
}

// New creates a Metrics instance with all ledger metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		AccountsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollbook_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),
		AttendanceMarked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollbook_attendance_marked_total",
			Help: "Total number of attendance records created",
		}),
		Checkouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollbook_checkouts_total",
			Help: "Total number of checkouts recorded",
		}),
		RejectedOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollbook_rejected_operations_total",
			Help: "Ledger operations rejected, by error code",
		}, []string{"code"}),
		MarkAttendanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollbook_mark_attendance_duration_seconds",
			Help:    "Duration of MarkAttendance operations (write critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementAccountsRegistered records a successful registration.
func (m *Metrics) IncrementAccountsRegistered() {
	m.AccountsRegistered.Inc()
}

// IncrementAttendanceMarked records a successful attendance mark.
func (m *Metrics) IncrementAttendanceMarked() {
	m.AttendanceMarked.Inc()
}

// IncrementCheckouts records a successful checkout.
func (m *Metrics) IncrementCheckouts() {
	m.Checkouts.Inc()
}

// IncrementRejected records a rejected operation by domain error code.
func (m *Metrics) IncrementRejected(code string) {
	m.RejectedOperations.WithLabelValues(code).Inc()
}

// ObserveMarkAttendance records the duration of a MarkAttendance operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMarkAttendance(start time.Time) {
	m.MarkAttendanceDuration.Observe(time.Since(start).Seconds())
}
