package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

type updateOutputRequest struct {
	Text *string `json:"text"`
}

// filterFromQuery reads tool, scenario, data_source and optionally status
// from the query string. Empty values leave a field unset.
func filterFromQuery(r *http.Request, withStatus bool) model.TraceFilter {
	q := r.URL.Query()
	f := model.TraceFilter{}.
		WithTool(types.Tool(q.Get("tool"))).
		WithScenario(types.Scenario(q.Get("scenario"))).
		WithDataSource(types.DataSource(q.Get("data_source")))
	if withStatus {
		f = f.WithStatus(types.EvalStatus(q.Get("status")))
	}
	return f
}

func traceID(r *http.Request) model.TraceID {
	return model.TraceID(chi.URLParam(r, "id"))
}

func listTracesHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := uc.ListTraces(r.Context(), filterFromQuery(r, true))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}

		resp := make([]traceSummaryResponse, 0, len(summaries))
		for _, s := range summaries {
			resp = append(resp, toSummaryResponse(s))
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

func getTraceHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trace, err := uc.GetTrace(r.Context(), traceID(r))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, toTraceResponse(trace))
	}
}

func acceptHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		trace, err := uc.Accept(ctx, model.PrincipalFromContext(ctx), traceID(r))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, toTraceResponse(trace))
	}
}

func rejectHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req rejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(ctx, w, goerr.Wrap(model.ErrValidation, "invalid request body", goerr.V("cause", err.Error())))
			return
		}

		trace, err := uc.Reject(ctx, model.PrincipalFromContext(ctx), traceID(r), req.Reason)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, toTraceResponse(trace))
	}
}

func resetHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		trace, err := uc.Reset(ctx, model.PrincipalFromContext(ctx), traceID(r))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, toTraceResponse(trace))
	}
}

func updateOutputHandler(uc *usecase.ReviewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req updateOutputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(ctx, w, goerr.Wrap(model.ErrValidation, "invalid request body", goerr.V("cause", err.Error())))
			return
		}
		if req.Text == nil {
			writeError(ctx, w, goerr.Wrap(model.ErrValidation, "text is required"))
			return
		}

		trace, err := uc.UpdateOutput(ctx, model.PrincipalFromContext(ctx), traceID(r), *req.Text)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, toTraceResponse(trace))
	}
}
