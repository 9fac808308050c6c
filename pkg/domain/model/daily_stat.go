package model

import (
	"math"
	"sort"
	"time"

	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// DateLayout is the calendar day key of daily statistics. Days are always
// taken in UTC.
const DateLayout = "2006-01-02"

// DayKey returns the UTC calendar day of t
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// WindowStart returns the first instant of a trailing window of the given
// number of days ending today (UTC). A window of 1 day starts at midnight.
func WindowStart(now time.Time, days int) time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(days - 1))
}

// DayCounts holds the raw counters of one day bucket
type DayCounts struct {
	Date      string
	Total     int
	Evaluated int
	Accepted  int
	Agreed    int
}

// Add counts one trace into the bucket
func (c *DayCounts) Add(status types.EvalStatus, score types.LLMScore) {
	c.Total++
	if !status.IsEvaluated() {
		return
	}
	c.Evaluated++
	if status == types.EvalStatusAccepted {
		c.Accepted++
	}
	if isAgreed(status, score) {
		c.Agreed++
	}
}

// DailyStat is the derived agreement and acceptance rate of one day
type DailyStat struct {
	Date           string
	AgreementRate  float64 // 0-100
	AcceptanceRate float64 // 0-100
	Total          int
	Evaluated      int
}

// NewDailyStat computes rates from counters. Rates are percentages rounded to
// one decimal place and are 0 when nothing was evaluated.
func NewDailyStat(c DayCounts) *DailyStat {
	return &DailyStat{
		Date:           c.Date,
		AgreementRate:  percent(c.Agreed, c.Evaluated),
		AcceptanceRate: percent(c.Accepted, c.Evaluated),
		Total:          c.Total,
		Evaluated:      c.Evaluated,
	}
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(d)) / 10
}

// AggregateDailyStats buckets traces by UTC day and returns one stat per day
// that has at least one trace, ascending by date. Days without traces are
// not emitted; days with only pending traces have both rates at 0.
func AggregateDailyStats(traces []*Trace) []*DailyStat {
	buckets := make(map[string]*DayCounts)
	for _, t := range traces {
		key := DayKey(t.CreatedAt)
		c, ok := buckets[key]
		if !ok {
			c = &DayCounts{Date: key}
			buckets[key] = c
		}
		c.Add(t.Status, t.LLMScore)
	}

	counts := make([]DayCounts, 0, len(buckets))
	for _, c := range buckets {
		counts = append(counts, *c)
	}
	return StatsFromCounts(counts)
}

// StatsFromCounts converts counters into stats sorted ascending by date.
// Buckets with no traces are dropped.
func StatsFromCounts(counts []DayCounts) []*DailyStat {
	stats := make([]*DailyStat, 0, len(counts))
	for _, c := range counts {
		if c.Total == 0 {
			continue
		}
		stats = append(stats, NewDailyStat(c))
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Date < stats[j].Date
	})
	return stats
}

// LastN returns the trailing n stats, or all of them when there are fewer
func LastN(stats []*DailyStat, n int) []*DailyStat {
	if n <= 0 {
		return []*DailyStat{}
	}
	if len(stats) <= n {
		return stats
	}
	return stats[len(stats)-n:]
}
