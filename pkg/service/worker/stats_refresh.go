package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

var (
	windowTraces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracedesk",
		Subsystem: "stats",
		Name:      "window_traces",
		Help:      "Traces created in the trailing stats window",
	})
	windowEvaluated = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracedesk",
		Subsystem: "stats",
		Name:      "window_evaluated_traces",
		Help:      "Evaluated traces created in the trailing stats window",
	})
	// latestRate holds the rates of the most recent day with traces.
	// Labels: rate (agreement, acceptance)
	latestRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tracedesk",
		Subsystem: "stats",
		Name:      "latest_day_rate_percent",
		Help:      "Agreement and acceptance rate of the most recent day with traces",
	}, []string{"rate"})
)

// StatsSource computes daily statistics
type StatsSource interface {
	Daily(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error)
}

// StatsRefreshWorker periodically recomputes daily statistics and publishes
// them as Prometheus gauges. The review flow never reads these values; they
// exist for dashboards and alerting.
type StatsRefreshWorker struct {
	stats    StatsSource
	days     int
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu   sync.RWMutex
	last []*model.DailyStat
}

func NewStatsRefreshWorker(stats StatsSource, days int, interval time.Duration) *StatsRefreshWorker {
	return &StatsRefreshWorker{
		stats:    stats,
		days:     days,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the refresh loop in a background goroutine. The first
// refresh runs immediately.
func (w *StatsRefreshWorker) Start(ctx context.Context) error {
	if w.days <= 0 {
		return goerr.Wrap(model.ErrValidation, "days must be positive", goerr.V(model.DaysKey, w.days))
	}
	if w.interval <= 0 {
		return goerr.Wrap(model.ErrValidation, "interval must be positive", goerr.V("interval", w.interval))
	}

	logging.Default().Info("Stats refresh worker starting",
		"interval", w.interval.String(),
		"days", w.days)

	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *StatsRefreshWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Stats refresh worker stopped")
}

// Last returns the stats of the most recent successful refresh
func (w *StatsRefreshWorker) Last() []*model.DailyStat {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *StatsRefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.refresh(ctx); err != nil {
		logging.Default().Error("Initial stats refresh failed (will retry next interval)", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				logging.Default().Error("Stats refresh failed (will retry next interval)", "error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// refresh keeps the previous gauges when the source fails
func (w *StatsRefreshWorker) refresh(ctx context.Context) error {
	stats, err := w.stats.Daily(ctx, w.days, model.TraceFilter{})
	if err != nil {
		return goerr.Wrap(err, "failed to compute daily stats", goerr.V(model.DaysKey, w.days))
	}

	var traces, evaluated int
	for _, s := range stats {
		traces += s.Total
		evaluated += s.Evaluated
	}
	windowTraces.Set(float64(traces))
	windowEvaluated.Set(float64(evaluated))

	if latest := model.LastN(stats, 1); len(latest) == 1 {
		latestRate.WithLabelValues("agreement").Set(latest[0].AgreementRate)
		latestRate.WithLabelValues("acceptance").Set(latest[0].AcceptanceRate)
	}

	w.mu.Lock()
	w.last = stats
	w.mu.Unlock()

	logging.Default().Debug("Stats refreshed", "days", len(stats), "traces", traces, "evaluated", evaluated)
	return nil
}
