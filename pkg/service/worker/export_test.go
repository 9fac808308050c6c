package worker

var (
	WindowTraces    = windowTraces
	WindowEvaluated = windowEvaluated
	LatestRate      = latestRate
)
