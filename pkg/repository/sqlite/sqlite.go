package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/interfaces"
	"github.com/secmon-lab/tracedesk/pkg/utils/safe"
	_ "modernc.org/sqlite"
)

// SQLite is a trace store backed by a single SQLite file
type SQLite struct {
	db    *sql.DB
	path  string
	trace *traceRepository
}

var _ interfaces.Repository = &SQLite{}

type Option func(*SQLite)

// WithClock replaces the clock used for the statistics window
func WithClock(now func() time.Time) Option {
	return func(s *SQLite) {
		s.trace.now = now
	}
}

// New opens or creates the database at path and brings its schema up to date
func New(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate schema", goerr.V("path", path))
	}

	s := &SQLite{
		db:    db,
		path:  path,
		trace: newTraceRepository(db),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("path", path))
		}
	}

	// pragmas in the DSN apply to every pooled connection
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	return db, nil
}

// PendingMigrations opens the database at path without changing it and
// returns the migrations New would apply
func PendingMigrations(ctx context.Context, path string) ([]Migration, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer safe.Close(ctx, db)

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Version returns the schema version of the open database
func (s *SQLite) Version(ctx context.Context) (int, error) {
	return SchemaVersion(ctx, s.db)
}

func (s *SQLite) Trace() interfaces.TraceRepository {
	return s.trace
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
