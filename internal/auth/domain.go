package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a login identity.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentProfile is the slice of an agent record that authentication needs:
// enough to gate cell edits and backfill the account link.
type AgentProfile struct {
	ID         uuid.UUID
	DisplayKey string
	Admin      bool
	AccountID  *uuid.UUID
}

// Principal is the resolved identity of a signed-in account: its role and,
// when one matches by email, the agent profile behind it.
type Principal struct {
	AccountID uuid.UUID
	Email     string
	IsAdmin   bool
	Agent     *AgentProfile
}

// DisplayKey derives the principal's own roster row key, empty when no agent
// profile resolved (such a principal edits no cell unless admin).
func (p Principal) DisplayKey() string {
	if p.Agent == nil {
		return ""
	}
	return p.Agent.DisplayKey
}
