package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	bufferUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "galemind",
			Subsystem: "buffer",
			Name:      "utilization_ratio",
			Help:      "Occupied fraction of each model's request buffer",
		},
		[]string{"model"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galemind",
			Subsystem: "buffer",
			Name:      "backpressure_total",
			Help:      "Pushes rejected or timed out because a buffer was saturated",
		},
		[]string{"model"},
	)

	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "galemind",
			Subsystem: "batcher",
			Name:      "batch_size",
			Help:      "Number of requests per executed batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"model"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galemind",
			Subsystem: "batcher",
			Name:      "batches_total",
			Help:      "Executed batches by outcome",
		},
		[]string{"model", "status"},
	)
)

func init() {
	prometheus.MustRegister(bufferUtilization, backpressureTotal, batchSize, batchesTotal)
}
