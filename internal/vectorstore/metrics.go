package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations by operation and result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"operation", "result"},
	)

	// PointsUpserted counts vectors written to the store.
	PointsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "vectorstore",
			Name:      "points_upserted_total",
			Help:      "Total number of points written to the vector store",
		},
	)

	// PointsDeleted counts vectors removed from the store.
	PointsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "indexd",
			Subsystem: "vectorstore",
			Name:      "points_deleted_total",
			Help:      "Total number of points deleted from the vector store",
		},
	)
)

func recordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
}
