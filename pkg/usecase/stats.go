package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

type StatsUseCase struct {
	repo   interfaces.Repository
	schema types.EnumSchema
}

func NewStatsUseCase(repo interfaces.Repository, schema types.EnumSchema) *StatsUseCase {
	return &StatsUseCase{
		repo:   repo,
		schema: schema,
	}
}

// Daily returns per-day rates for the trailing window of days. A status in
// filter is ignored.
func (uc *StatsUseCase) Daily(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error) {
	if days <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "days must be positive", goerr.V(model.DaysKey, days))
	}

	filter = filter.ForStats()
	if err := filter.Validate(uc.schema); err != nil {
		return nil, err
	}

	stats, err := uc.repo.Trace().DailyStats(ctx, days, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to aggregate daily stats", goerr.V(model.DaysKey, days))
	}
	return stats, nil
}
