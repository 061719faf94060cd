// Package notes stores free-text notes attached to agents.
package notes

import (
	"time"

	"github.com/google/uuid"
)

// Note is one remark attached to an agent.
type Note struct {
	ID        int64     `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	Content   string    `json:"contenu"`
	Author    string    `json:"auteur,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
