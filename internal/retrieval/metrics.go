package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EnrichmentsTotal counts enrichment outcomes. The fallback_* results are
// the ones worth alerting on: the API stayed up but answers degraded.
var EnrichmentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "indexd",
		Subsystem: "retrieval",
		Name:      "enrichments_total",
		Help:      "Total prompt enrichments by result (enriched, fallback_error, fallback_empty, fallback_budget)",
	},
	[]string{"result"},
)
