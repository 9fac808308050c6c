package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/cli/config"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
	"github.com/secmon-lab/tracedesk/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdImport() *cli.Command {
	var file string
	var appCfg config.App
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "JSON Lines file of traces, or - for stdin",
			Value:       "-",
			Destination: &file,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import traces from a JSON Lines file",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var r io.Reader = os.Stdin
			if file != "-" {
				// #nosec G304 - path is expected to be provided by CLI argument
				f, err := os.Open(file)
				if err != nil {
					return goerr.Wrap(err, "failed to open import file", goerr.V("path", file))
				}
				defer safe.Close(ctx, f)
				r = f
			}

			uc, closer, err := setupUseCases(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer closer()

			result, err := uc.Import.ImportJSONLines(ctx, r)
			if err != nil {
				return goerr.Wrap(err, "failed to import traces", goerr.V("path", file))
			}

			logging.Default().Info("Import completed", "imported", result.Imported, "batches", result.Batches)
			return nil
		},
	}
}

// setupUseCases opens the repository and builds the use cases for one-shot
// commands. The returned function closes the repository.
func setupUseCases(ctx context.Context, appCfg *config.App, repoCfg *config.Repository) (*usecase.UseCases, func(), error) {
	schema, err := appCfg.Schema()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load schema")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	closer := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}
	return usecase.New(repo, usecase.WithSchema(schema)), closer, nil
}
