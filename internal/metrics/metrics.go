package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkflowsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smooshr",
		Name:      "workflow_saves_total",
		Help:      "Workflow create, update and delete requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	WorkflowRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smooshr",
		Name:      "workflow_runs_total",
		Help:      "Workflow runs by outcome (passed, failed, error).",
	}, []string{"outcome"})
	ValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smooshr",
		Name:      "validation_failures_total",
		Help:      "Total validation failures reported by workflow runs.",
	})
	RowsValidated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smooshr",
		Name:      "rows_validated_total",
		Help:      "Total data rows read by workflow runs.",
	})
	UsersProvisioned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "smooshr",
		Name:      "users_provisioned_total",
		Help:      "Users created on first sign in.",
	})
)

var initOnce sync.Once

// Init registers collectors; call once from main. Repeated calls are ignored.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(WorkflowsSaved, WorkflowRuns, ValidationFailures, RowsValidated, UsersProvisioned)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
