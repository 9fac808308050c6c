package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/cli/config"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdToken() *cli.Command {
	var subject string
	var role string
	var authCfg config.Auth

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "subject",
			Usage:       "Subject (reviewer name) of the token",
			Required:    true,
			Destination: &subject,
		},
		&cli.StringFlag{
			Name:        "role",
			Usage:       "Role granted by the token (Inspector, Reviewer or Admin)",
			Value:       string(types.RoleReviewer),
			Destination: &role,
		},
	}
	flags = append(flags, authCfg.Flags()...)

	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			r, err := types.ParseRole(role)
			if err != nil {
				return goerr.Wrap(config.ErrInvalidFlag, "invalid role", goerr.V(config.FlagKey, "role"), goerr.V(config.ValueKey, role))
			}

			jwtUC, err := authCfg.JWT()
			if err != nil {
				return err
			}

			token, err := jwtUC.IssueToken(subject, r)
			if err != nil {
				return goerr.Wrap(err, "failed to issue token")
			}

			safe.Write(ctx, c.Root().Writer, []byte(token+"\n"))
			return nil
		},
	}
}
