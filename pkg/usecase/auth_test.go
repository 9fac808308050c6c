package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
)

func TestJWTAuthUseCase(t *testing.T) {
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	uc := usecase.NewJWTAuthUseCase([]byte("test-secret"), usecase.WithAuthClock(clock), usecase.WithTokenTTL(time.Hour))
	ctx := context.Background()

	t.Run("issued token authenticates", func(t *testing.T) {
		token, err := uc.IssueToken("alice", types.RoleReviewer)
		gt.NoError(t, err).Required()

		p, err := uc.Authenticate(ctx, token)
		gt.NoError(t, err).Required()
		gt.Value(t, p.Subject).Equal("alice")
		gt.Value(t, p.Role).Equal(types.RoleReviewer)
		gt.Bool(t, p.CanUpdateRecords()).True()
	})

	t.Run("inspector token is read only", func(t *testing.T) {
		token, err := uc.IssueToken("bob", types.RoleInspector)
		gt.NoError(t, err).Required()

		p, err := uc.Authenticate(ctx, token)
		gt.NoError(t, err).Required()
		gt.Bool(t, p.SignedIn).True()
		gt.Bool(t, p.CanUpdateRecords()).False()
	})

	t.Run("token signed with other secret is refused", func(t *testing.T) {
		other := usecase.NewJWTAuthUseCase([]byte("other-secret"), usecase.WithAuthClock(clock))
		token, err := other.IssueToken("mallory", types.RoleAdmin)
		gt.NoError(t, err).Required()

		_, err = uc.Authenticate(ctx, token)
		gt.Error(t, err).Is(model.ErrUnauthenticated)
	})

	t.Run("expired token is refused", func(t *testing.T) {
		token, err := uc.IssueToken("alice", types.RoleReviewer)
		gt.NoError(t, err).Required()

		later := usecase.NewJWTAuthUseCase([]byte("test-secret"), usecase.WithAuthClock(func() time.Time {
			return now.Add(2 * time.Hour)
		}))
		_, err = later.Authenticate(ctx, token)
		gt.Error(t, err).Is(model.ErrUnauthenticated)
	})

	t.Run("garbage is refused", func(t *testing.T) {
		_, err := uc.Authenticate(ctx, "not-a-token")
		gt.Error(t, err).Is(model.ErrUnauthenticated)
	})

	t.Run("invalid role cannot be issued", func(t *testing.T) {
		_, err := uc.IssueToken("alice", types.Role("Owner"))
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("IsNoAuthn returns false", func(t *testing.T) {
		gt.Bool(t, uc.IsNoAuthn()).False()
	})
}
