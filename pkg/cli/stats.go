package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/cli/config"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdStats() *cli.Command {
	var days int
	var tool, scenario, dataSource string
	var noColor bool
	var appCfg config.App
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "days",
			Aliases:     []string{"d"},
			Usage:       "Number of trailing days (UTC)",
			Value:       30,
			Destination: &days,
		},
		&cli.StringFlag{
			Name:        "tool",
			Usage:       "Only count traces of this tool",
			Category:    "Filter",
			Destination: &tool,
		},
		&cli.StringFlag{
			Name:        "scenario",
			Usage:       "Only count traces of this scenario",
			Category:    "Filter",
			Destination: &scenario,
		},
		&cli.StringFlag{
			Name:        "data-source",
			Usage:       "Only count traces of this data source",
			Category:    "Filter",
			Destination: &dataSource,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "Disable colored output",
			Destination: &noColor,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Print daily agreement and acceptance rates",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var filter model.TraceFilter
			if tool != "" {
				filter = filter.WithTool(types.Tool(tool))
			}
			if scenario != "" {
				filter = filter.WithScenario(types.Scenario(scenario))
			}
			if dataSource != "" {
				filter = filter.WithDataSource(types.DataSource(dataSource))
			}

			uc, closer, err := setupUseCases(ctx, &appCfg, &repoCfg)
			if err != nil {
				return err
			}
			defer closer()

			stats, err := uc.Stats.Daily(ctx, days, filter)
			if err != nil {
				return goerr.Wrap(err, "failed to compute daily stats")
			}

			if noColor {
				color.NoColor = true
			}
			printDailyStats(c.Root().Writer, stats)
			return nil
		},
	}
}

func printDailyStats(w io.Writer, stats []*model.DailyStat) {
	if len(stats) == 0 {
		_, _ = fmt.Fprintln(w, "no traces in window")
		return
	}

	_, _ = fmt.Fprintf(w, "%-10s  %9s  %10s  %6s  %9s\n", "DATE", "AGREEMENT", "ACCEPTANCE", "TOTAL", "EVALUATED")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%-10s  %s  %s  %6d  %9d\n",
			s.Date,
			rateColor(s.AgreementRate).Sprintf("%8.1f%%", s.AgreementRate),
			rateColor(s.AcceptanceRate).Sprintf("%9.1f%%", s.AcceptanceRate),
			s.Total,
			s.Evaluated,
		)
	}
}

func rateColor(rate float64) *color.Color {
	switch {
	case rate >= 80:
		return color.New(color.FgGreen)
	case rate >= 50:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
