package types

import "fmt"

// TimeRange is a statistics window preset, in days
type TimeRange int

const (
	TimeRange7Days  TimeRange = 7
	TimeRange30Days TimeRange = 30
	TimeRange90Days TimeRange = 90
)

// DefaultTimeRange is the window used by the dashboard
const DefaultTimeRange = TimeRange30Days

// AllTimeRanges returns the presets offered to reviewers
func AllTimeRanges() []TimeRange {
	return []TimeRange{TimeRange7Days, TimeRange30Days, TimeRange90Days}
}

// Days returns the window length
func (r TimeRange) Days() int {
	return int(r)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%dd", int(r))
}
