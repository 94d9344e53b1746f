package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace of all exported metrics.
const MetricsNamespace = "curfew"

type managerMetrics struct {
	operations       *prometheus.CounterVec
	objectsCreated   *prometheus.CounterVec
	objectsRemoved   *prometheus.CounterVec
	cleanupFailures  prometheus.Counter
	creationFailures prometheus.Counter
}

func newManagerMetrics(r prometheus.Registerer) *managerMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &managerMetrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "operations_total",
			Help:      "Number of window operations by operation and change.",
		}, []string{"op", "change"}),
		objectsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "objects_created_total",
			Help:      "Number of router objects created by kind.",
		}, []string{"kind"}),
		objectsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "objects_removed_total",
			Help:      "Number of stale router objects removed by kind.",
		}, []string{"kind"}),
		cleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "cleanup_failures_total",
			Help:      "Number of router objects that couldn't be removed.",
		}),
		creationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "creation_failures_total",
			Help:      "Number of windows that were only partially created.",
		}),
	}
}

func (m *managerMetrics) observe(op Operation, res *Result) {
	m.operations.WithLabelValues(string(op), string(res.Change)).Inc()
	if res.Window != nil {
		m.objectsCreated.WithLabelValues(string(KindRule)).Add(float64(len(res.Window.Rules)))
		m.objectsCreated.WithLabelValues(string(KindTask)).Add(float64(len(res.Window.Tasks)))
	}
	m.objectsRemoved.WithLabelValues(string(KindRule)).Add(float64(res.RulesRemoved))
	m.objectsRemoved.WithLabelValues(string(KindTask)).Add(float64(res.TasksRemoved))
	if res.CleanupErr != nil {
		m.cleanupFailures.Add(float64(len(res.CleanupErr.Failures)))
	}
}
