package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Auth holds CLI flags for bearer token authentication
type Auth struct {
	jwtSecret     string `masq:"secret"`
	tokenTTL      time.Duration
	noAuthRole    string
	noAuthSubject string
}

func (x *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HS256 secret used to sign and verify bearer tokens",
			Category:    "Authentication",
			Sources:     cli.EnvVars("TRACEDESK_JWT_SECRET"),
			Destination: &x.jwtSecret,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Usage:       "Lifetime of issued tokens",
			Value:       24 * time.Hour,
			Category:    "Authentication",
			Sources:     cli.EnvVars("TRACEDESK_TOKEN_TTL"),
			Destination: &x.tokenTTL,
		},
		&cli.StringFlag{
			Name:        "no-auth-role",
			Usage:       "Skip authentication and treat every caller as this role (development only). Example: --no-auth-role=Reviewer",
			Category:    "Authentication",
			Sources:     cli.EnvVars("TRACEDESK_NO_AUTH_ROLE"),
			Destination: &x.noAuthRole,
		},
		&cli.StringFlag{
			Name:        "no-auth-subject",
			Usage:       "Subject reported in no-auth mode",
			Value:       "local",
			Category:    "Authentication",
			Sources:     cli.EnvVars("TRACEDESK_NO_AUTH_SUBJECT"),
			Destination: &x.noAuthSubject,
		},
	}
}

func (x Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("jwt-secret.len", len(x.jwtSecret)),
		slog.Duration("token-ttl", x.tokenTTL),
		slog.String("no-auth-role", x.noAuthRole),
	)
}

// IsNoAuthMode returns true when authentication is skipped
func (x *Auth) IsNoAuthMode() bool {
	return x.noAuthRole != ""
}

// JWT returns the token issuer and verifier
func (x *Auth) JWT() (*usecase.JWTAuthUseCase, error) {
	if x.jwtSecret == "" {
		return nil, goerr.Wrap(ErrInvalidFlag, "jwt-secret is required", goerr.V(FlagKey, "jwt-secret"))
	}
	opts := []usecase.JWTOption{}
	if x.tokenTTL > 0 {
		opts = append(opts, usecase.WithTokenTTL(x.tokenTTL))
	}
	return usecase.NewJWTAuthUseCase([]byte(x.jwtSecret), opts...), nil
}

// Configure returns the authentication of the server. Without a JWT secret
// and without no-auth mode every caller is anonymous and read-only.
func (x *Auth) Configure() (usecase.AuthUseCaseInterface, error) {
	if x.IsNoAuthMode() {
		role, err := types.ParseRole(x.noAuthRole)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidFlag, "invalid no-auth role", goerr.V(FlagKey, "no-auth-role"), goerr.V(ValueKey, x.noAuthRole))
		}
		logging.Default().Warn("Running in no-auth mode (development only)", "role", role, "subject", x.noAuthSubject)
		return usecase.NewNoAuthnUseCase(x.noAuthSubject, role), nil
	}

	if x.jwtSecret == "" {
		logging.Default().Warn("jwt-secret is not set, every caller is read-only")
		return nil, nil
	}

	logging.Default().Info("Bearer token authentication enabled")
	return x.JWT()
}
