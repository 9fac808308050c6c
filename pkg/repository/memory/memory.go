package memory

import (
	"time"

	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
)

type Memory struct {
	trace *traceRepository
}

var _ interfaces.Repository = &Memory{}

type Option func(*Memory)

// WithClock replaces the clock used for the statistics window
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.trace.now = now
	}
}

func New(opts ...Option) *Memory {
	m := &Memory{
		trace: newTraceRepository(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Trace() interfaces.TraceRepository {
	return m.trace
}

func (m *Memory) Close() error {
	return nil
}
