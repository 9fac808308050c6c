package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/service/worker"
)

type fakeStats struct {
	mu    sync.Mutex
	stats []*model.DailyStat
	err   error
	calls int
}

func (f *fakeStats) set(stats []*model.DailyStat, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
	f.err = err
}

func (f *fakeStats) Daily(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func (f *fakeStats) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStatsRefreshWorker_InitialRefresh(t *testing.T) {
	src := &fakeStats{}
	src.set([]*model.DailyStat{
		{Date: "2024-03-11", AgreementRate: 50, AcceptanceRate: 50, Total: 4, Evaluated: 2},
		{Date: "2024-03-12", AgreementRate: 100, AcceptanceRate: 0, Total: 3, Evaluated: 1},
	}, nil)

	w := worker.NewStatsRefreshWorker(src, 7, 10*time.Minute)
	gt.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	waitFor(t, func() bool { return len(w.Last()) == 2 })

	gt.Number(t, testutil.ToFloat64(worker.WindowTraces)).Equal(7)
	gt.Number(t, testutil.ToFloat64(worker.WindowEvaluated)).Equal(3)
	gt.Number(t, testutil.ToFloat64(worker.LatestRate.WithLabelValues("agreement"))).Equal(100)
	gt.Number(t, testutil.ToFloat64(worker.LatestRate.WithLabelValues("acceptance"))).Equal(0)
}

func TestStatsRefreshWorker_KeepsLastOnFailure(t *testing.T) {
	src := &fakeStats{}
	src.set([]*model.DailyStat{
		{Date: "2024-03-12", AgreementRate: 100, AcceptanceRate: 100, Total: 1, Evaluated: 1},
	}, nil)

	w := worker.NewStatsRefreshWorker(src, 7, 20*time.Millisecond)
	gt.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	waitFor(t, func() bool { return len(w.Last()) == 1 })

	src.set(nil, errors.New("backend down"))
	calls := src.callCount()
	waitFor(t, func() bool { return src.callCount() > calls+1 })

	gt.A(t, w.Last()).Length(1)
	gt.Number(t, testutil.ToFloat64(worker.WindowTraces)).Equal(1)
}

func TestStatsRefreshWorker_StopsOnContextCancel(t *testing.T) {
	src := &fakeStats{}
	ctx, cancel := context.WithCancel(context.Background())

	w := worker.NewStatsRefreshWorker(src, 7, 10*time.Millisecond)
	gt.NoError(t, w.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStatsRefreshWorker_RejectsInvalidConfig(t *testing.T) {
	src := &fakeStats{}

	err := worker.NewStatsRefreshWorker(src, 0, time.Minute).Start(context.Background())
	gt.Error(t, err).Is(model.ErrValidation)

	err = worker.NewStatsRefreshWorker(src, 7, 0).Start(context.Background())
	gt.Error(t, err).Is(model.ErrValidation)
}
