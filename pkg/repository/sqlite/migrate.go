package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
	"github.com/secmon-lab/tracedesk/pkg/utils/safe"
)

// SchemaVersion reads PRAGMA user_version from the database
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, goerr.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

// LatestVersion returns the version of the newest migration
func LatestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

// Migrate brings the schema up to the latest version. Applied migrations are
// tracked with PRAGMA user_version.
func Migrate(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	if current >= LatestVersion() {
		return nil
	}

	logger := logging.From(ctx)
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logger.Info("applying sqlite migration", "version", m.Version, "description", m.Description)
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin migration", goerr.V("version", m.Version))
	}
	committed := false
	defer safe.Rollback(ctx, tx, &committed)

	if err := m.Up(ctx, tx); err != nil {
		return goerr.Wrap(err, "failed to apply migration",
			goerr.V("version", m.Version),
			goerr.V("description", m.Description))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit migration", goerr.V("version", m.Version))
	}
	committed = true

	// user_version is set outside the transaction; the DDL is idempotent so a
	// crash in between only re-runs the migration
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return goerr.Wrap(err, "failed to set schema version", goerr.V("version", m.Version))
	}
	return nil
}
