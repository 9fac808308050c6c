package http

import (
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
)

func dailyStatsHandler(uc *usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		days := types.DefaultTimeRange.Days()
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(ctx, w, goerr.Wrap(model.ErrValidation, "days must be an integer", goerr.V(model.DaysKey, raw)))
				return
			}
			days = n
		}

		stats, err := uc.Daily(ctx, days, filterFromQuery(r, false))
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		// last trims the series for compact charts
		if raw := r.URL.Query().Get("last"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(ctx, w, goerr.Wrap(model.ErrValidation, "last must be a positive integer", goerr.V("last", raw)))
				return
			}
			stats = model.LastN(stats, n)
		}
		writeJSON(ctx, w, http.StatusOK, toDailyStatResponses(stats))
	}
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := model.PrincipalFromContext(r.Context())
		writeJSON(r.Context(), w, http.StatusOK, meResponse{
			Subject:          p.Subject,
			SignedIn:         p.SignedIn,
			Role:             p.Role.String(),
			CanUpdateRecords: p.CanUpdateRecords(),
		})
	}
}

func schemaHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, toSchemaResponse(uc.Schema()))
	}
}
