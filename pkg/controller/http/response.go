package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/errutil"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

type traceSummaryResponse struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"user_message"`
	Status      string    `json:"status"`
	LLMScore    string    `json:"llm_score"`
	Tool        string    `json:"tool"`
	Scenario    string    `json:"scenario"`
	DataSource  string    `json:"data_source"`
	CreatedAt   time.Time `json:"created_at"`
}

type functionCallResponse struct {
	ID           string         `json:"id"`
	FunctionName string         `json:"function_name"`
	Arguments    map[string]any `json:"arguments"`
	Response     map[string]any `json:"response"`
	CreatedAt    time.Time      `json:"created_at"`
}

type traceResponse struct {
	traceSummaryResponse
	AssistantResponse     string                  `json:"assistant_response"`
	AssistantResponseHTML string                  `json:"assistant_response_html"`
	EditableOutput        string                  `json:"editable_output"`
	RejectReason          *string                 `json:"reject_reason"`
	FunctionCalls         []*functionCallResponse `json:"function_calls"`
}

type dailyStatResponse struct {
	Date           string  `json:"date"`
	AgreementRate  float64 `json:"agreement_rate"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	Total          int     `json:"total"`
	Evaluated      int     `json:"evaluated"`
}

type meResponse struct {
	Subject          string `json:"subject"`
	SignedIn         bool   `json:"signed_in"`
	Role             string `json:"role"`
	CanUpdateRecords bool   `json:"can_update_records"`
}

type schemaResponse struct {
	Version     string   `json:"version"`
	Tools       []string `json:"tools"`
	Scenarios   []string `json:"scenarios"`
	DataSources []string `json:"data_sources"`
	Statuses    []string `json:"statuses"`
	TimeRanges  []int    `json:"time_ranges"`
	DefaultDays int      `json:"default_days"`
}

func toSummaryResponse(s *model.TraceSummary) traceSummaryResponse {
	return traceSummaryResponse{
		ID:          s.ID.String(),
		UserMessage: s.UserMessage,
		Status:      s.Status.String(),
		LLMScore:    string(s.LLMScore),
		Tool:        string(s.Tool),
		Scenario:    string(s.Scenario),
		DataSource:  string(s.DataSource),
		CreatedAt:   s.CreatedAt,
	}
}

func toTraceResponse(t *model.Trace) *traceResponse {
	resp := &traceResponse{
		traceSummaryResponse:  toSummaryResponse(t.Summary()),
		AssistantResponse:     t.AssistantResponse,
		AssistantResponseHTML: renderMarkdown(t.AssistantResponse),
		EditableOutput:        t.EditableOutput,
		RejectReason:          t.RejectReason,
		FunctionCalls:         make([]*functionCallResponse, 0, len(t.FunctionCalls)),
	}
	for _, fc := range t.FunctionCalls {
		resp.FunctionCalls = append(resp.FunctionCalls, &functionCallResponse{
			ID:           fc.ID,
			FunctionName: fc.FunctionName,
			Arguments:    fc.Arguments,
			Response:     fc.Response,
			CreatedAt:    fc.CreatedAt,
		})
	}
	return resp
}

func toDailyStatResponses(stats []*model.DailyStat) []*dailyStatResponse {
	resp := make([]*dailyStatResponse, 0, len(stats))
	for _, s := range stats {
		resp = append(resp, &dailyStatResponse{
			Date:           s.Date,
			AgreementRate:  s.AgreementRate,
			AcceptanceRate: s.AcceptanceRate,
			Total:          s.Total,
			Evaluated:      s.Evaluated,
		})
	}
	return resp
}

func toSchemaResponse(schema types.EnumSchema) *schemaResponse {
	resp := &schemaResponse{Version: string(schema.Version)}
	for _, v := range schema.Tools {
		resp.Tools = append(resp.Tools, string(v))
	}
	for _, v := range schema.Scenarios {
		resp.Scenarios = append(resp.Scenarios, string(v))
	}
	for _, v := range schema.DataSources {
		resp.DataSources = append(resp.DataSources, string(v))
	}
	for _, v := range types.AllEvalStatuses() {
		resp.Statuses = append(resp.Statuses, v.String())
	}
	for _, v := range types.AllTimeRanges() {
		resp.TimeRanges = append(resp.TimeRanges, v.Days())
	}
	resp.DefaultDays = types.DefaultTimeRange.Days()
	return resp
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}

// statusCode maps the error taxonomy to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error body. Server errors go through
// errutil so they are logged with their stack and reported.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		_ = errutil.Handle(ctx, err, "request failed")
		writeJSON(ctx, w, code, errorResponse{Error: http.StatusText(code)})
		return
	}

	logging.From(ctx).Warn("request refused", "status", code, "error", err.Error())
	writeJSON(ctx, w, code, errorResponse{Error: err.Error()})
}
