package notes

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for notes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForAgent returns an agent's notes, newest first.
func (r *Repository) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]Note, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, agent_id, contenu, COALESCE(auteur, ''), created_at
		FROM notes WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Note
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.AgentID, &note.Content, &note.Author, &note.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, note)
	}
	return list, rows.Err()
}

// Add inserts a note.
func (r *Repository) Add(ctx context.Context, agentID uuid.UUID, content, author string) (Note, error) {
	var note Note
	err := r.pool.QueryRow(ctx, `INSERT INTO notes (agent_id, contenu, auteur) VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, agent_id, contenu, COALESCE(auteur, ''), created_at`, agentID, content, author).
		Scan(&note.ID, &note.AgentID, &note.Content, &note.Author, &note.CreatedAt)
	return note, err
}
