package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OperationsTotal counts dispatcher operations by desk, algorithm and outcome
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderlab_operations_total",
		Help: "Total number of dispatcher operations",
	},
	[]string{"desk", "algorithm", "outcome"},
)

// OperationLatency records how long dispatcher operations take
var OperationLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orderlab_operation_latency_seconds",
		Help:    "Latency in seconds of dispatcher operations",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	},
	[]string{"algorithm"},
)

// AlgorithmSteps records the step count of each search or sort
var AlgorithmSteps = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orderlab_algorithm_steps",
		Help:    "Steps counted per algorithm run",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	},
	[]string{"algorithm"},
)

// Desk level gauges
var (
	DeskOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderlab_desk_orders",
			Help: "Number of orders held by a desk",
		},
		[]string{"desk"},
	)

	Desks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderlab_desks",
			Help: "Number of open desks",
		},
	)

	ReportsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderlab_reports_dropped_total",
			Help: "Run reports that could not be published",
		},
	)
)

func init() {
	prometheus.MustRegister(OperationsTotal, OperationLatency, AlgorithmSteps)
	prometheus.MustRegister(DeskOrders, Desks, ReportsDropped)
}

// ObserveOperation records a completed operation. steps < 0 means the
// operation does not count steps.
func ObserveOperation(desk, algorithm string, duration time.Duration, steps int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OperationsTotal.WithLabelValues(desk, algorithm, outcome).Inc()
	OperationLatency.WithLabelValues(algorithm).Observe(duration.Seconds())
	if err == nil && steps >= 0 {
		AlgorithmSteps.WithLabelValues(algorithm).Observe(float64(steps))
	}
}

// ForgetDesk drops the per-desk series of a deleted desk
func ForgetDesk(desk string) {
	DeskOrders.DeleteLabelValues(desk)
	OperationsTotal.DeletePartialMatch(prometheus.Labels{"desk": desk})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
