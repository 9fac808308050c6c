package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK      = "ok"
	resultRefused = "refused"
	resultError   = "error"
)

var (
	// reviewActions counts reviewer writes.
	// Labels: action (accept, reject, reset, update_output), result (ok, refused, error)
	reviewActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracedesk",
		Subsystem: "review",
		Name:      "actions_total",
		Help:      "Total reviewer actions by result",
	}, []string{"action", "result"})

	// importedTraces counts traces written by bulk import
	importedTraces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracedesk",
		Subsystem: "import",
		Name:      "traces_total",
		Help:      "Total traces imported",
	})
)
