package usecase

import (
	"time"

	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

type UseCases struct {
	repo   interfaces.Repository
	schema types.EnumSchema
	now    func() time.Time
	Review *ReviewUseCase
	Stats  *StatsUseCase
	Import *ImportUseCase
	// Auth is nil when no authentication is configured; every caller is
	// then anonymous
	Auth AuthUseCaseInterface
}

type Option func(*UseCases)

// WithSchema sets the classification schema used to validate filters and
// imported traces
func WithSchema(schema types.EnumSchema) Option {
	return func(uc *UseCases) {
		uc.schema = schema
	}
}

func WithAuth(auth AuthUseCaseInterface) Option {
	return func(uc *UseCases) {
		uc.Auth = auth
	}
}

// WithClock replaces the clock stamped on imported traces without a timestamp
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:   repo,
		schema: types.DefaultSchema,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Review = NewReviewUseCase(repo, uc.schema)
	uc.Stats = NewStatsUseCase(repo, uc.schema)
	uc.Import = NewImportUseCase(repo, uc.schema, uc.now)

	return uc
}

// Schema returns the active classification schema
func (uc *UseCases) Schema() types.EnumSchema {
	return uc.schema
}
