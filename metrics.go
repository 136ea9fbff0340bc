package main

import (
	"strconv"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"
	"github.com/Tutortoise/pose-metrics-service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "pose_metrics"

var (
	// analysesTotal counts analysis requests by input kind and outcome.
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of pose analyses",
		},
		[]string{"input", "status"}, // input: image, keypoints
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of processing stage duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	// metricAvailability tracks how often each angle could be computed.
	metricAvailability = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "angle_results_total",
			Help:      "Computed angles by metric, side and availability",
		},
		[]string{"metric", "side", "available"},
	)
)

var allMetrics = []prometheus.Collector{analysesTotal, stageDuration, metricAvailability}

// newRegistry registers the service collectors, the Go runtime collectors
// and, when pool is non-nil, gauges reading the session pool.
func newRegistry(pool *PoseSessionPool) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if pool != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "pool_size", Help: "Configured pose session pool size",
			}, func() float64 { return float64(pool.Size()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "pool_sessions_in_use", Help: "Pose sessions currently acquired",
			}, func() float64 { return float64(pool.GetMetrics().InUse) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Name: "pool_acquired_total", Help: "Total pose session acquisitions",
			}, func() float64 { return float64(pool.GetMetrics().TotalAcquired) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Name: "pool_acquire_failures_total", Help: "Pose session acquisitions that timed out",
			}, func() float64 { return float64(pool.GetMetrics().AcquireFailures) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Name: "pool_wait_seconds_total", Help: "Total time spent waiting for pose sessions",
			}, func() float64 { return pool.GetMetrics().WaitTime.Seconds() }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace, Name: "pool_replenish_failures_total", Help: "Pose sessions the health check failed to recreate",
			}, func() float64 { return float64(pool.GetMetrics().ReplenishFailures) }),
		)
	}
	return reg
}

func recordAnalysis(input, status string) {
	analysesTotal.WithLabelValues(input, status).Inc()
}

func recordTimings(t *models.ProcessingTimings) {
	for stage, d := range map[string]float64{
		"decode":      t.ImageDecode.Seconds(),
		"resize":      t.Resize.Seconds(),
		"preprocess":  t.Preprocess.Seconds(),
		"inference":   t.Inference.Seconds(),
		"postprocess": t.Postprocess.Seconds(),
		"analysis":    t.Analysis.Seconds(),
	} {
		if d > 0 {
			stageDuration.WithLabelValues(stage).Observe(d)
		}
	}
}

func recordAngles(angles biomechanics.BodyAngles) {
	for metric, sa := range map[string]biomechanics.SideAngles{
		"elbow":          angles.ElbowAngles,
		"knee":           angles.KneeAngles,
		"armpit":         angles.ArmpitAngles,
		"leg_separation": angles.LegSeparationAngle,
	} {
		for _, side := range biomechanics.Sides {
			metricAvailability.WithLabelValues(metric, string(side), strconv.FormatBool(sa.Get(side).Valid)).Inc()
		}
	}
}
