package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/cli/config"
	"github.com/secmon-lab/tracedesk/pkg/repository/firestore"
	"github.com/secmon-lab/tracedesk/pkg/repository/sqlite"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate the SQLite schema or Firestore indexes",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Migrate configuration", "repository", repoCfg, "dryRun", dryRun)

			switch repoCfg.Backend() {
			case config.BackendSQLite:
				return migrateSQLite(ctx, repoCfg.SQLitePath(), dryRun)
			case config.BackendFirestore:
				if repoCfg.ProjectID() == "" {
					return goerr.Wrap(config.ErrInvalidFlag, "firestore-project-id is required", goerr.V(config.FlagKey, "firestore-project-id"))
				}
				return migrateFirestore(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(), repoCfg.CollectionPrefix(), dryRun)
			case config.BackendMemory:
				logging.Default().Info("Memory backend has nothing to migrate")
				return nil
			default:
				return goerr.Wrap(config.ErrInvalidFlag, "invalid repository backend",
					goerr.V(config.FlagKey, "repository-backend"),
					goerr.V(config.ValueKey, repoCfg.Backend()))
			}
		},
	}
}

func migrateSQLite(ctx context.Context, path string, dryRun bool) error {
	logger := logging.Default()

	if dryRun {
		pending, err := sqlite.PendingMigrations(ctx, path)
		if err != nil {
			return goerr.Wrap(err, "failed to read pending migrations")
		}
		if len(pending) == 0 {
			logger.Info("No changes required")
			return nil
		}
		for _, m := range pending {
			logger.Info("Migration step", "version", m.Version, "description", m.Description)
		}
		return nil
	}

	// Opening the database applies pending migrations
	db, err := sqlite.New(ctx, path)
	if err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close sqlite database", "error", err.Error())
		}
	}()

	version, err := db.Version(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to read schema version")
	}
	logger.Info("Migrations applied successfully", "path", path, "version", version)
	return nil
}

func migrateFirestore(ctx context.Context, projectID, databaseID, prefix string, dryRun bool) error {
	logger := logging.Default()
	indexConfig := getIndexConfig(prefix)

	client, err := fireconf.NewClient(ctx, projectID, databaseID)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

// filterFields are the trace fields list queries filter on by equality
var filterFields = []string{"Status", "Tool", "Scenario", "DataSource"}

// getIndexConfig returns one composite index per combination of equality
// filters, each followed by the list ordering (CreatedAt ASC, Seq ASC).
// Daily stats queries range over CreatedAt and are served by the same
// indexes.
func getIndexConfig(prefix string) *fireconf.Config {
	var indexes []fireconf.Index
	for mask := 0; mask < 1<<len(filterFields); mask++ {
		var fields []fireconf.IndexField
		for i, name := range filterFields {
			if mask&(1<<i) != 0 {
				fields = append(fields, fireconf.IndexField{Path: name, Order: fireconf.OrderAscending})
			}
		}
		fields = append(fields,
			fireconf.IndexField{Path: "CreatedAt", Order: fireconf.OrderAscending},
			fireconf.IndexField{Path: "Seq", Order: fireconf.OrderAscending},
		)
		indexes = append(indexes, fireconf.Index{Fields: fields})
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name:    firestore.TracesCollectionName(prefix),
				Indexes: indexes,
			},
		},
	}
}
