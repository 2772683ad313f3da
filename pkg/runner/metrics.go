package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/df07/go-flatnuts/pkg/sampler"
)

// Metrics are the Prometheus instruments updated by the runner
type Metrics struct {
	trajectories *prometheus.CounterVec
	evaluations  prometheus.Counter
	reflections  prometheus.Counter
	rejections   prometheus.Counter
	retries      prometheus.Counter
	treeDepth    prometheus.Histogram
	duration     prometheus.Histogram
}

// NewMetrics registers the runner metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		trajectories: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flatnuts_trajectories_total",
			Help: "Trajectories finished, by outcome",
		}, []string{"sampler", "outcome"}),
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "flatnuts_likelihood_evaluations_total",
			Help: "Likelihood evaluations requested by the samplers",
		}),
		reflections: factory.NewCounter(prometheus.CounterOpts{
			Name: "flatnuts_reflections_total",
			Help: "Region boundary reflections attempted",
		}),
		rejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "flatnuts_rejections_total",
			Help: "Directions ended at a non-reflectable point",
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "flatnuts_retries_total",
			Help: "Trajectories restarted from a new seed",
		}),
		treeDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flatnuts_tree_depth",
			Help:    "Doublings per NUTS tree",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flatnuts_trajectory_duration_seconds",
			Help:    "Wall time per trajectory",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}),
	}
}

func (m *Metrics) observe(kind string, result Result) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if !result.Accepted {
		outcome = "rejected"
	}
	m.trajectories.WithLabelValues(kind, outcome).Inc()
	m.addStats(result.Stats)
	m.retries.Add(float64(result.Attempts - 1))
	if kind == SamplerNUTS {
		m.treeDepth.Observe(float64(result.Depth))
	}
	m.duration.Observe(result.Duration.Seconds())
}

func (m *Metrics) addStats(stats sampler.Stats) {
	m.evaluations.Add(float64(stats.Evaluations))
	m.reflections.Add(float64(stats.Reflections))
	m.rejections.Add(float64(stats.Rejections))
}
