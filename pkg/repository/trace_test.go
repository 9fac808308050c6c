package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/repository/firestore"
	"github.com/secmon-lab/tracedesk/pkg/repository/memory"
	"github.com/secmon-lab/tracedesk/pkg/repository/sqlite"
)

// fixedNow is the clock of every repository under test
var fixedNow = time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)

type newRepoFunc func(t *testing.T) interfaces.Repository

func newTrace(id string, createdAt time.Time, status types.EvalStatus, score types.LLMScore, tool types.Tool) *model.Trace {
	return &model.Trace{
		ID:                model.TraceID(id),
		UserMessage:       "message of " + id,
		AssistantResponse: "response of " + id,
		EditableOutput:    "response of " + id,
		Status:            status,
		LLMScore:          score,
		Tool:              tool,
		Scenario:          "Market-Research",
		DataSource:        "Human",
		CreatedAt:         createdAt,
	}
}

// uniqueID keeps IDs distinct across runs against a shared Firestore project
func uniqueID(name string) string {
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}

func runTraceRepositoryTest(t *testing.T, newRepo newRepoFunc) {
	t.Helper()

	t.Run("ListSummaries returns traces ascending by creation time", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tool := types.Tool(uniqueID("tool"))
		base := fixedNow.Add(-time.Hour)
		t1 := newTrace(uniqueID("a"), base.Add(2*time.Minute), types.EvalStatusPending, types.LLMScorePass, tool)
		t2 := newTrace(uniqueID("b"), base, types.EvalStatusPending, types.LLMScorePass, tool)
		t3 := newTrace(uniqueID("c"), base.Add(time.Minute), types.EvalStatusPending, types.LLMScorePass, tool)
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{t1, t2, t3})).Required()

		summaries, err := repo.Trace().ListSummaries(ctx, model.TraceFilter{}.WithTool(tool))
		gt.NoError(t, err).Required()
		gt.Array(t, summaries).Length(3).Required()
		gt.Value(t, summaries[0].ID).Equal(t2.ID)
		gt.Value(t, summaries[1].ID).Equal(t3.ID)
		gt.Value(t, summaries[2].ID).Equal(t1.ID)
		gt.Value(t, summaries[0].UserMessage).Equal(t2.UserMessage)
	})

	t.Run("ListSummaries breaks timestamp ties by insertion order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tool := types.Tool(uniqueID("tool"))
		at := fixedNow.Add(-time.Hour)
		first := newTrace(uniqueID("first"), at, types.EvalStatusPending, types.LLMScorePass, tool)
		second := newTrace(uniqueID("second"), at, types.EvalStatusPending, types.LLMScorePass, tool)
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{first, second})).Required()

		summaries, err := repo.Trace().ListSummaries(ctx, model.TraceFilter{}.WithTool(tool))
		gt.NoError(t, err).Required()
		gt.Array(t, summaries).Length(2).Required()
		gt.Value(t, summaries[0].ID).Equal(first.ID)
		gt.Value(t, summaries[1].ID).Equal(second.ID)
	})

	t.Run("ListSummaries honours every filter field", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		toolA := types.Tool(uniqueID("tool-a"))
		toolB := types.Tool(uniqueID("tool-b"))
		at := fixedNow.Add(-time.Hour)

		var traces []*model.Trace
		for i, tool := range []types.Tool{toolA, toolB} {
			for j, st := range types.AllEvalStatuses() {
				for k, ds := range []types.DataSource{"Human", "Synthetic"} {
					tr := newTrace(uniqueID(fmt.Sprintf("f%d%d%d", i, j, k)), at.Add(time.Duration(len(traces))*time.Second), st, types.LLMScorePass, tool)
					tr.DataSource = ds
					if k == 1 {
						tr.Scenario = "Closing-Process"
					}
					traces = append(traces, tr)
				}
			}
		}
		gt.NoError(t, repo.Trace().Import(ctx, traces)).Required()

		filters := []model.TraceFilter{
			model.TraceFilter{}.WithTool(toolA),
			model.TraceFilter{}.WithTool(toolA).WithStatus(types.EvalStatusRejected),
			model.TraceFilter{}.WithTool(toolB).WithDataSource("Synthetic"),
			model.TraceFilter{}.WithTool(toolB).WithScenario("Closing-Process").WithStatus(types.EvalStatusPending),
			model.TraceFilter{}.WithTool(toolB).WithScenario("Market-Research").WithDataSource("Synthetic"),
		}
		wantLen := []int{6, 2, 3, 1, 0}

		for i, f := range filters {
			summaries, err := repo.Trace().ListSummaries(ctx, f)
			gt.NoError(t, err).Required()
			gt.Array(t, summaries).Length(wantLen[i])

			for _, s := range summaries {
				tr := &model.Trace{Tool: s.Tool, Scenario: s.Scenario, Status: s.Status, DataSource: s.DataSource}
				gt.Bool(t, f.Matches(tr)).True()
			}
		}
	})

	t.Run("GetDetail returns full trace with ordered function calls", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		at := fixedNow.Add(-time.Hour)
		tr := newTrace(uniqueID("detail"), at, types.EvalStatusPending, types.LLMScoreFail, "Email-Draft")
		tr.FunctionCalls = []*model.FunctionCall{
			{ID: uniqueID("fc-late"), TraceID: tr.ID, FunctionName: "send_email", Arguments: map[string]any{"to": "a@example.com"}, CreatedAt: at.Add(2 * time.Second)},
			{ID: uniqueID("fc-early"), TraceID: tr.ID, FunctionName: "search", Arguments: map[string]any{"q": "flat"}, Response: map[string]any{"hits": "3"}, CreatedAt: at.Add(time.Second)},
			{ID: uniqueID("fc-tie"), TraceID: tr.ID, FunctionName: "draft", Arguments: map[string]any{}, CreatedAt: at.Add(2 * time.Second)},
		}
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{tr})).Required()

		got, err := repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(tr.ID)
		gt.Value(t, got.AssistantResponse).Equal(tr.AssistantResponse)
		gt.Value(t, got.EditableOutput).Equal(tr.EditableOutput)
		gt.Value(t, got.LLMScore).Equal(types.LLMScoreFail)
		gt.Value(t, got.RejectReason).Nil()
		gt.Bool(t, got.CreatedAt.Equal(at)).True()

		gt.Array(t, got.FunctionCalls).Length(3).Required()
		gt.Value(t, got.FunctionCalls[0].FunctionName).Equal("search")
		gt.Value(t, got.FunctionCalls[0].Response["hits"]).Equal(any("3"))
		gt.Value(t, got.FunctionCalls[1].FunctionName).Equal("send_email")
		gt.Value(t, got.FunctionCalls[1].Arguments["to"]).Equal(any("a@example.com"))
		gt.Value(t, len(got.FunctionCalls[1].Response)).Equal(0)
		gt.Value(t, got.FunctionCalls[2].FunctionName).Equal("draft")
	})

	t.Run("GetDetail of trace without function calls", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tr := newTrace(uniqueID("nocalls"), fixedNow.Add(-time.Hour), types.EvalStatusPending, types.LLMScorePass, "Email-Draft")
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{tr})).Required()

		got, err := repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, got.FunctionCalls).Length(0)
	})

	t.Run("GetDetail of unknown trace is NotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Trace().GetDetail(context.Background(), model.TraceID(uniqueID("missing")))
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("SetStatus Accepted clears a previous reject reason", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tr := newTrace(uniqueID("status"), fixedNow.Add(-time.Hour), types.EvalStatusPending, types.LLMScorePass, "Email-Draft")
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{tr})).Required()

		gt.NoError(t, repo.Trace().SetStatus(ctx, tr.ID, types.EvalStatusRejected, model.Ptr("wrong address"))).Required()
		got, err := repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.EvalStatusRejected)
		gt.Value(t, got.RejectReason).NotNil().Required()
		gt.Value(t, *got.RejectReason).Equal("wrong address")

		gt.NoError(t, repo.Trace().SetStatus(ctx, tr.ID, types.EvalStatusAccepted, model.Ptr("ignored"))).Required()
		got, err = repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.EvalStatusAccepted)
		gt.Value(t, got.RejectReason).Nil()
	})

	t.Run("SetStatus Pending clears reject reason", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tr := newTrace(uniqueID("pending"), fixedNow.Add(-time.Hour), types.EvalStatusRejected, types.LLMScorePass, "Email-Draft")
		tr.RejectReason = model.Ptr("stale")
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{tr})).Required()

		gt.NoError(t, repo.Trace().SetStatus(ctx, tr.ID, types.EvalStatusPending, nil)).Required()
		got, err := repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Status).Equal(types.EvalStatusPending)
		gt.Value(t, got.RejectReason).Nil()
	})

	t.Run("SetStatus of unknown trace is NotFound", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Trace().SetStatus(context.Background(), model.TraceID(uniqueID("missing")), types.EvalStatusAccepted, nil)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("SetEditableOutput overwrites only the editable output", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tr := newTrace(uniqueID("output"), fixedNow.Add(-time.Hour), types.EvalStatusPending, types.LLMScorePass, "Email-Draft")
		gt.NoError(t, repo.Trace().Import(ctx, []*model.Trace{tr})).Required()

		gt.NoError(t, repo.Trace().SetEditableOutput(ctx, tr.ID, "edited")).Required()
		gt.NoError(t, repo.Trace().SetEditableOutput(ctx, tr.ID, "edited twice")).Required()

		got, err := repo.Trace().GetDetail(ctx, tr.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.EditableOutput).Equal("edited twice")
		gt.Value(t, got.AssistantResponse).Equal(tr.AssistantResponse)
		gt.Value(t, got.Status).Equal(types.EvalStatusPending)

		err = repo.Trace().SetEditableOutput(ctx, model.TraceID(uniqueID("missing")), "x")
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("DailyStats aggregates the trailing window", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tool := types.Tool(uniqueID("stats"))
		day := func(offset, hour int) time.Time {
			d := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
			return d.AddDate(0, 0, -offset).Add(time.Duration(hour) * time.Hour)
		}
		traces := []*model.Trace{
			// two days ago: Accepted/Pass, Accepted/Fail, Rejected/Fail
			newTrace(uniqueID("s1"), day(2, 1), types.EvalStatusAccepted, types.LLMScorePass, tool),
			newTrace(uniqueID("s2"), day(2, 2), types.EvalStatusAccepted, types.LLMScoreFail, tool),
			newTrace(uniqueID("s3"), day(2, 3), types.EvalStatusRejected, types.LLMScoreFail, tool),
			// yesterday: pending only
			newTrace(uniqueID("s4"), day(1, 5), types.EvalStatusPending, types.LLMScorePass, tool),
			// today: Accepted/Pass, Rejected/Fail
			newTrace(uniqueID("s5"), day(0, 1), types.EvalStatusAccepted, types.LLMScorePass, tool),
			newTrace(uniqueID("s6"), day(0, 2), types.EvalStatusRejected, types.LLMScoreFail, tool),
			// outside a 7 day window
			newTrace(uniqueID("s7"), day(7, 1), types.EvalStatusAccepted, types.LLMScorePass, tool),
		}
		gt.NoError(t, repo.Trace().Import(ctx, traces)).Required()

		stats, err := repo.Trace().DailyStats(ctx, 7, model.TraceFilter{}.WithTool(tool))
		gt.NoError(t, err).Required()
		gt.Array(t, stats).Length(3).Required()

		gt.Value(t, stats[0].Date).Equal("2024-03-10")
		gt.Value(t, stats[0].AcceptanceRate).Equal(66.7)
		gt.Value(t, stats[0].AgreementRate).Equal(66.7)

		gt.Value(t, stats[1].Date).Equal("2024-03-11")
		gt.Value(t, stats[1].AcceptanceRate).Equal(0.0)
		gt.Value(t, stats[1].AgreementRate).Equal(0.0)

		gt.Value(t, stats[2].Date).Equal("2024-03-12")
		gt.Value(t, stats[2].AcceptanceRate).Equal(50.0)
		gt.Value(t, stats[2].AgreementRate).Equal(100.0)

		wide, err := repo.Trace().DailyStats(ctx, 30, model.TraceFilter{}.WithTool(tool))
		gt.NoError(t, err).Required()
		gt.Array(t, wide).Length(4)
	})

	t.Run("DailyStats ignores status filter", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tool := types.Tool(uniqueID("stats-status"))
		at := time.Date(2024, 3, 12, 1, 0, 0, 0, time.UTC)
		traces := []*model.Trace{
			newTrace(uniqueID("x1"), at, types.EvalStatusAccepted, types.LLMScorePass, tool),
			newTrace(uniqueID("x2"), at.Add(time.Minute), types.EvalStatusRejected, types.LLMScorePass, tool),
		}
		gt.NoError(t, repo.Trace().Import(ctx, traces)).Required()

		stats, err := repo.Trace().DailyStats(ctx, 7, model.TraceFilter{}.WithTool(tool).WithStatus(types.EvalStatusAccepted))
		gt.NoError(t, err).Required()
		gt.Array(t, stats).Length(1).Required()
		gt.Value(t, stats[0].AcceptanceRate).Equal(50.0)
		gt.Value(t, stats[0].AgreementRate).Equal(50.0)
	})

	t.Run("DailyStats rejects a non-positive window", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Trace().DailyStats(context.Background(), 0, model.TraceFilter{})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestTraceRepository_Memory(t *testing.T) {
	runTraceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New(memory.WithClock(func() time.Time { return fixedNow }))
	})
}

func TestTraceRepository_SQLite(t *testing.T) {
	runTraceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		path := filepath.Join(t.TempDir(), "traces.db")
		repo, err := sqlite.New(context.Background(), path, sqlite.WithClock(func() time.Time { return fixedNow }))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, repo.Close())
		})
		return repo
	})
}

func TestTraceRepository_Firestore(t *testing.T) {
	projectID := os.Getenv("TRACEDESK_TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TRACEDESK_TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TRACEDESK_TEST_FIRESTORE_DATABASE_ID")

	runTraceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := firestore.New(context.Background(), projectID, databaseID,
			firestore.WithCollectionPrefix("test"),
			firestore.WithClock(func() time.Time { return fixedNow }),
		)
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, repo.Close())
		})
		return repo
	})
}
