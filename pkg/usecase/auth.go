package usecase

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// AuthUseCaseInterface resolves a bearer credential into the caller
type AuthUseCaseInterface interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
	IsNoAuthn() bool
}

const (
	roleClaim       = "role"
	defaultTokenTTL = 24 * time.Hour
	issuer          = "tracedesk"
)

// JWTAuthUseCase verifies HS256 tokens carrying a role claim
type JWTAuthUseCase struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption is a functional option for JWTAuthUseCase
type JWTOption func(*JWTAuthUseCase)

// WithTokenTTL sets the lifetime of issued tokens
func WithTokenTTL(ttl time.Duration) JWTOption {
	return func(uc *JWTAuthUseCase) {
		uc.ttl = ttl
	}
}

// WithAuthClock replaces the clock used to issue and validate tokens
func WithAuthClock(now func() time.Time) JWTOption {
	return func(uc *JWTAuthUseCase) {
		uc.now = now
	}
}

func NewJWTAuthUseCase(secret []byte, options ...JWTOption) *JWTAuthUseCase {
	uc := &JWTAuthUseCase{
		secret: secret,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

// IsNoAuthn returns false for JWTAuthUseCase
func (uc *JWTAuthUseCase) IsNoAuthn() bool {
	return false
}

// IssueToken signs a token for subject with role
func (uc *JWTAuthUseCase) IssueToken(subject string, role types.Role) (string, error) {
	if subject == "" {
		return "", goerr.Wrap(model.ErrValidation, "subject is required")
	}
	if !role.IsValid() {
		return "", goerr.Wrap(model.ErrValidation, "invalid role", goerr.V("role", role))
	}

	now := uc.now()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(uc.ttl)).
		Claim(roleClaim, role.String()).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, uc.secret))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

// Authenticate verifies the signature and expiry of token and returns the
// signed-in principal it names
func (uc *JWTAuthUseCase) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, uc.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
		jwt.WithClock(jwt.ClockFunc(uc.now)),
		jwt.WithAcceptableSkew(10*time.Second),
	)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "failed to verify token", goerr.V("cause", err.Error()))
	}

	if parsed.Subject() == "" {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "sub claim not found in token")
	}

	raw, ok := parsed.Get(roleClaim)
	if !ok {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "role claim not found in token")
	}
	roleStr, ok := raw.(string)
	if !ok {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "role claim is not a string")
	}
	role, err := types.ParseRole(roleStr)
	if err != nil {
		return nil, goerr.Wrap(model.ErrUnauthenticated, "invalid role claim", goerr.V("role", roleStr))
	}

	return &model.Principal{
		Subject:  parsed.Subject(),
		SignedIn: true,
		Role:     role,
	}, nil
}
