package usecase

import (
	"context"

	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// NoAuthnUseCase treats every caller as a fixed signed-in user (for
// development/testing)
type NoAuthnUseCase struct {
	subject string
	role    types.Role
}

// NewNoAuthnUseCase creates a new NoAuthnUseCase instance with specified user info
func NewNoAuthnUseCase(subject string, role types.Role) *NoAuthnUseCase {
	if subject == "" {
		subject = "local"
	}
	return &NoAuthnUseCase{
		subject: subject,
		role:    role,
	}
}

// Authenticate ignores token and returns the configured user
func (uc *NoAuthnUseCase) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	return &model.Principal{
		Subject:  uc.subject,
		SignedIn: true,
		Role:     uc.role,
	}, nil
}

// IsNoAuthn returns true for NoAuthnUseCase
func (uc *NoAuthnUseCase) IsNoAuthn() bool {
	return true
}
