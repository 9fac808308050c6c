package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/safe"
)

// timeLayout is fixed width so that text order equals time order and the
// first 10 characters are the UTC day
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse timestamp", goerr.V("value", s))
	}
	return t, nil
}

type traceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func newTraceRepository(db *sql.DB) *traceRepository {
	return &traceRepository{
		db:  db,
		now: time.Now,
	}
}

// filterClause builds the WHERE conditions of filter. Conditions are joined
// with AND and always start with "1=1" so callers can append more.
func filterClause(filter model.TraceFilter) (string, []any) {
	conds := []string{"1=1"}
	var args []any
	if filter.Tool != nil {
		conds = append(conds, "tool = ?")
		args = append(args, string(*filter.Tool))
	}
	if filter.Scenario != nil {
		conds = append(conds, "scenario = ?")
		args = append(args, string(*filter.Scenario))
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.DataSource != nil {
		conds = append(conds, "data_source = ?")
		args = append(args, string(*filter.DataSource))
	}
	return strings.Join(conds, " AND "), args
}

func (r *traceRepository) ListSummaries(ctx context.Context, filter model.TraceFilter) ([]*model.TraceSummary, error) {
	where, args := filterClause(filter)
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_message, status, llm_score, tool, scenario, data_source, created_at
FROM traces
WHERE `+where+`
ORDER BY created_at ASC, seq ASC`, args...)
	if err != nil {
		return nil, model.WrapRepository(err, "failed to query trace summaries")
	}
	defer safe.Close(ctx, rows)

	summaries := make([]*model.TraceSummary, 0)
	for rows.Next() {
		var s model.TraceSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &s.UserMessage, &s.Status, &s.LLMScore, &s.Tool, &s.Scenario, &s.DataSource, &createdAt); err != nil {
			return nil, model.WrapRepository(err, "failed to scan trace summary")
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, goerr.Wrap(err, "invalid trace row", goerr.V(model.TraceIDKey, s.ID))
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapRepository(err, "failed to iterate trace summaries")
	}

	return summaries, nil
}

func (r *traceRepository) GetDetail(ctx context.Context, id model.TraceID) (*model.Trace, error) {
	var t model.Trace
	var rejectReason sql.NullString
	var createdAt string

	err := r.db.QueryRowContext(ctx, `
SELECT id, user_message, assistant_response, editable_output, status, llm_score,
       reject_reason, tool, scenario, data_source, created_at
FROM traces WHERE id = ?`, string(id)).Scan(
		&t.ID, &t.UserMessage, &t.AssistantResponse, &t.EditableOutput, &t.Status, &t.LLMScore,
		&rejectReason, &t.Tool, &t.Scenario, &t.DataSource, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
	}
	if err != nil {
		return nil, model.WrapRepository(err, "failed to get trace", goerr.V(model.TraceIDKey, id))
	}

	if rejectReason.Valid {
		t.RejectReason = &rejectReason.String
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, goerr.Wrap(err, "invalid trace row", goerr.V(model.TraceIDKey, id))
	}

	calls, err := r.functionCalls(ctx, id)
	if err != nil {
		return nil, err
	}
	t.FunctionCalls = calls

	return &t, nil
}

func (r *traceRepository) functionCalls(ctx context.Context, id model.TraceID) ([]*model.FunctionCall, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, trace_id, function_name, arguments, response, created_at
FROM function_calls
WHERE trace_id = ?
ORDER BY created_at ASC, seq ASC`, string(id))
	if err != nil {
		return nil, model.WrapRepository(err, "failed to query function calls", goerr.V(model.TraceIDKey, id))
	}
	defer safe.Close(ctx, rows)

	calls := make([]*model.FunctionCall, 0)
	for rows.Next() {
		var fc model.FunctionCall
		var args string
		var resp sql.NullString
		var createdAt string
		if err := rows.Scan(&fc.ID, &fc.TraceID, &fc.FunctionName, &args, &resp, &createdAt); err != nil {
			return nil, model.WrapRepository(err, "failed to scan function call", goerr.V(model.TraceIDKey, id))
		}

		if err := json.Unmarshal([]byte(args), &fc.Arguments); err != nil {
			return nil, goerr.Wrap(err, "failed to decode function arguments", goerr.V("function_call_id", fc.ID))
		}
		if resp.Valid {
			if err := json.Unmarshal([]byte(resp.String), &fc.Response); err != nil {
				return nil, goerr.Wrap(err, "failed to decode function response", goerr.V("function_call_id", fc.ID))
			}
		}
		if fc.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, goerr.Wrap(err, "invalid function call row", goerr.V("function_call_id", fc.ID))
		}
		calls = append(calls, &fc)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapRepository(err, "failed to iterate function calls", goerr.V(model.TraceIDKey, id))
	}

	return calls, nil
}

func (r *traceRepository) SetStatus(ctx context.Context, id model.TraceID, status types.EvalStatus, rejectReason *string) error {
	var reason sql.NullString
	if status == types.EvalStatusRejected && rejectReason != nil {
		reason = sql.NullString{String: *rejectReason, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE traces SET status = ?, reject_reason = ? WHERE id = ?",
		string(status), reason, string(id))
	if err != nil {
		return model.WrapRepository(err, "failed to update trace status",
			goerr.V(model.TraceIDKey, id),
			goerr.V(model.StatusKey, status))
	}
	return r.requireAffected(res, id)
}

func (r *traceRepository) SetEditableOutput(ctx context.Context, id model.TraceID, text string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE traces SET editable_output = ? WHERE id = ?",
		text, string(id))
	if err != nil {
		return model.WrapRepository(err, "failed to update editable output", goerr.V(model.TraceIDKey, id))
	}
	return r.requireAffected(res, id)
}

func (r *traceRepository) requireAffected(res sql.Result, id model.TraceID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return model.WrapRepository(err, "failed to read affected rows", goerr.V(model.TraceIDKey, id))
	}
	if n == 0 {
		return goerr.Wrap(model.ErrNotFound, "trace not found", goerr.V(model.TraceIDKey, id))
	}
	return nil
}

// DailyStats counts per UTC day in SQL; rates are derived from the counts
func (r *traceRepository) DailyStats(ctx context.Context, days int, filter model.TraceFilter) ([]*model.DailyStat, error) {
	if days <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "days must be positive", goerr.V(model.DaysKey, days))
	}

	where, args := filterClause(filter.ForStats())
	args = append([]any{formatTime(model.WindowStart(r.now(), days))}, args...)

	rows, err := r.db.QueryContext(ctx, `
SELECT substr(created_at, 1, 10) AS day,
       COUNT(*),
       SUM(CASE WHEN status IN ('Accepted', 'Rejected') THEN 1 ELSE 0 END),
       SUM(CASE WHEN status = 'Accepted' THEN 1 ELSE 0 END),
       SUM(CASE WHEN (status = 'Accepted' AND llm_score = 'Pass')
                  OR (status = 'Rejected' AND llm_score = 'Fail') THEN 1 ELSE 0 END)
FROM traces
WHERE created_at >= ? AND `+where+`
GROUP BY day
ORDER BY day ASC`, args...)
	if err != nil {
		return nil, model.WrapRepository(err, "failed to aggregate daily stats", goerr.V(model.DaysKey, days))
	}
	defer safe.Close(ctx, rows)

	var counts []model.DayCounts
	for rows.Next() {
		var c model.DayCounts
		if err := rows.Scan(&c.Date, &c.Total, &c.Evaluated, &c.Accepted, &c.Agreed); err != nil {
			return nil, model.WrapRepository(err, "failed to scan daily stats")
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapRepository(err, "failed to iterate daily stats")
	}

	return model.StatsFromCounts(counts), nil
}

func (r *traceRepository) Import(ctx context.Context, traces []*model.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapRepository(err, "failed to begin import")
	}
	committed := false
	defer safe.Rollback(ctx, tx, &committed)

	traceStmt, err := tx.PrepareContext(ctx, `
INSERT INTO traces (id, user_message, assistant_response, editable_output, status, llm_score,
                    reject_reason, tool, scenario, data_source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return model.WrapRepository(err, "failed to prepare trace insert")
	}
	defer safe.Close(ctx, traceStmt)

	callStmt, err := tx.PrepareContext(ctx, `
INSERT INTO function_calls (id, trace_id, function_name, arguments, response, created_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return model.WrapRepository(err, "failed to prepare function call insert")
	}
	defer safe.Close(ctx, callStmt)

	for _, t := range traces {
		var reason sql.NullString
		if t.RejectReason != nil {
			reason = sql.NullString{String: *t.RejectReason, Valid: true}
		}
		if _, err := traceStmt.ExecContext(ctx,
			string(t.ID), t.UserMessage, t.AssistantResponse, t.EditableOutput,
			string(t.Status), string(t.LLMScore), reason,
			string(t.Tool), string(t.Scenario), string(t.DataSource),
			formatTime(t.CreatedAt),
		); err != nil {
			return model.WrapRepository(err, "failed to insert trace", goerr.V(model.TraceIDKey, t.ID))
		}

		for _, fc := range t.FunctionCalls {
			args, err := json.Marshal(nonNilMap(fc.Arguments))
			if err != nil {
				return goerr.Wrap(err, "failed to encode function arguments", goerr.V("function_call_id", fc.ID))
			}
			var resp sql.NullString
			if fc.Response != nil {
				raw, err := json.Marshal(fc.Response)
				if err != nil {
					return goerr.Wrap(err, "failed to encode function response", goerr.V("function_call_id", fc.ID))
				}
				resp = sql.NullString{String: string(raw), Valid: true}
			}

			if _, err := callStmt.ExecContext(ctx,
				fc.ID, string(t.ID), fc.FunctionName, string(args), resp, formatTime(fc.CreatedAt),
			); err != nil {
				return model.WrapRepository(err, "failed to insert function call",
					goerr.V(model.TraceIDKey, t.ID),
					goerr.V("function_call_id", fc.ID))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.WrapRepository(err, "failed to commit import")
	}
	committed = true
	return nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
