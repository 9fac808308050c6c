package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/cli"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/repository/sqlite"
)

const traceLines = `{"id":"t1","user_message":"draft an email","assistant_response":"Dear client","llm_score":"Pass","tool":"Email-Draft","scenario":"Client-Communication","data_source":"Human","created_at":"2024-03-10T08:00:00Z"}
{"id":"t2","user_message":"value this house","assistant_response":"About 500k","status":"Rejected","reject_reason":"no comps","llm_score":"Fail","tool":"Valuation-Tool","scenario":"Property-Analysis","data_source":"Synthetic","created_at":"2024-03-11T08:00:00Z"}
`

func TestImportAndStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "traces.db")
	input := filepath.Join(dir, "traces.jsonl")
	gt.NoError(t, os.WriteFile(input, []byte(traceLines), 0o600))

	gt.NoError(t, cli.Run(ctx, []string{"tracedesk", "migrate", "--sqlite-path", dbPath}, "dev"))
	gt.NoError(t, cli.Run(ctx, []string{"tracedesk", "import", "--sqlite-path", dbPath, "--file", input}, "dev"))
	gt.NoError(t, cli.Run(ctx, []string{"tracedesk", "stats", "--sqlite-path", dbPath, "--days", "7", "--no-color"}, "dev"))

	db, err := sqlite.New(ctx, dbPath)
	gt.NoError(t, err).Required()
	defer func() { gt.NoError(t, db.Close()) }()

	summaries, err := db.Trace().ListSummaries(ctx, model.TraceFilter{})
	gt.NoError(t, err).Required()
	gt.A(t, summaries).Length(2)
	gt.Value(t, summaries[0].ID).Equal(model.TraceID("t1"))
}

func TestImport_RejectsMalformedFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "traces.db")
	input := filepath.Join(dir, "broken.jsonl")
	gt.NoError(t, os.WriteFile(input, []byte(traceLines+"{\"id\":\n"), 0o600))

	err := cli.Run(ctx, []string{"tracedesk", "import", "--sqlite-path", dbPath, "--file", input}, "dev")
	gt.Error(t, err).Is(model.ErrValidation)

	db, err := sqlite.New(ctx, dbPath)
	gt.NoError(t, err).Required()
	defer func() { gt.NoError(t, db.Close()) }()

	summaries, err := db.Trace().ListSummaries(ctx, model.TraceFilter{})
	gt.NoError(t, err).Required()
	gt.A(t, summaries).Length(0)
}

func TestMigrate_DryRun(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "traces.db")

	gt.NoError(t, cli.Run(ctx, []string{"tracedesk", "migrate", "--dry-run", "--sqlite-path", dbPath}, "dev"))
	gt.NoError(t, cli.Run(ctx, []string{"tracedesk", "migrate", "--sqlite-path", dbPath}, "dev"))

	pending, err := sqlite.PendingMigrations(ctx, dbPath)
	gt.NoError(t, err).Required()
	gt.A(t, pending).Length(0)
}

func TestToken_RequiresSecret(t *testing.T) {
	err := cli.Run(context.Background(), []string{"tracedesk", "token", "--subject", "alice"}, "dev")
	gt.Error(t, err)
}
