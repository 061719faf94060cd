package roster

import (
	"context"

	"github.com/google/uuid"

	"github.com/cothk/planning/internal/auth"
)

// AuthDirectory exposes the agent table to the auth package as its profile
// directory.
type AuthDirectory struct {
	repo *PGRepository
}

// NewAuthDirectory wraps the repository.
func NewAuthDirectory(repo *PGRepository) AuthDirectory {
	return AuthDirectory{repo: repo}
}

// FindAgentByEmail resolves the agent profile behind an account email.
func (d AuthDirectory) FindAgentByEmail(ctx context.Context, email string) (auth.AgentProfile, error) {
	agent, err := d.repo.FindAgentByEmail(ctx, email)
	if err != nil {
		return auth.AgentProfile{}, err
	}
	return auth.AgentProfile{
		ID:         agent.ID,
		DisplayKey: agent.DisplayKey(),
		Admin:      agent.Admin,
		AccountID:  agent.AccountID,
	}, nil
}

// LinkAccount backfills the account reference on an agent.
func (d AuthDirectory) LinkAccount(ctx context.Context, agentID, accountID uuid.UUID, email string) error {
	return d.repo.LinkAccount(ctx, agentID, accountID, email)
}
