package sqlite

import (
	"context"
	"database/sql"
)

// Migration is a single schema migration step
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations. Append new
// migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "traces and function calls",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS traces (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    user_message TEXT NOT NULL,
    assistant_response TEXT NOT NULL,
    editable_output TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'Pending',
    llm_score TEXT NOT NULL,
    reject_reason TEXT,
    tool TEXT NOT NULL,
    scenario TEXT NOT NULL,
    data_source TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at, seq);

CREATE TABLE IF NOT EXISTS function_calls (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    trace_id TEXT NOT NULL REFERENCES traces(id) ON DELETE CASCADE,
    function_name TEXT NOT NULL,
    arguments TEXT NOT NULL DEFAULT '{}',
    response TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_function_calls_trace ON function_calls(trace_id, created_at, seq);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "filter indexes",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_traces_status ON traces(status, created_at);
CREATE INDEX IF NOT EXISTS idx_traces_tool_scenario ON traces(tool, scenario, data_source, created_at);
`)
			return err
		},
	},
}
