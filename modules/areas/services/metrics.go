package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
)

var (
	areasCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areas",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Total number of area snapshot cache lookups broken down by hit/miss.",
	}, []string{"result"})

	areasCacheInvalidate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areas",
		Subsystem: "cache",
		Name:      "invalidate_total",
		Help:      "Total number of area snapshot cache invalidations broken down by reason.",
	}, []string{"reason"})

	areasPlanOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areas",
		Name:      "plan_ops_total",
		Help:      "Total number of applied hierarchy operations broken down by kind.",
	}, []string{"op"})

	areasMutationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areas",
		Name:      "mutation_rejections_total",
		Help:      "Total number of rejected area mutations broken down by mutation and error code.",
	}, []string{"mutation", "code"})

	areasWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areas",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of area write conflicts reported by Postgres broken down by kind.",
	}, []string{"kind"})
)

func recordCacheRequest(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	areasCacheRequests.WithLabelValues(result).Inc()
}

func recordCacheInvalidate(reason string) {
	if reason == "" {
		reason = "manual"
	}
	areasCacheInvalidate.WithLabelValues(reason).Inc()
}

func recordPlanOps(plan hierarchy.Plan) {
	for _, op := range plan.Ops {
		areasPlanOps.WithLabelValues(string(op.Kind)).Inc()
	}
}

func recordRejection(mutation, code string) {
	areasMutationRejections.WithLabelValues(mutation, code).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	areasWriteConflicts.WithLabelValues(kind).Inc()
}
