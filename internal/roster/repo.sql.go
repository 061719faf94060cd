package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cothk/planning/internal/platform/db"
	"github.com/cothk/planning/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for the roster.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const agentColumns = `a.id, a.nom, a.prenom, a.groupe_id, a.type_role, a.ordre, a.actif,
	a.user_id, a.is_admin, a.telephone, a.email, a.created_at, a.updated_at,
	g.id, g.nom, g.description, g.ordre`

const agentFrom = ` FROM agents a LEFT JOIN groupes g ON g.id = a.groupe_id`

func scanAgent(row pgx.Row) (Agent, error) {
	var (
		agent                   Agent
		givenName, phone, email *string
		groupID, gID            *int64
		accountID               *uuid.UUID
		gName, gDescription     *string
		gOrder                  *int
	)
	err := row.Scan(&agent.ID, &agent.Surname, &givenName, &groupID, &agent.Role, &agent.Order,
		&agent.Active, &accountID, &agent.Admin, &phone, &email, &agent.CreatedAt, &agent.UpdatedAt,
		&gID, &gName, &gDescription, &gOrder)
	if err != nil {
		return Agent{}, err
	}
	if givenName != nil {
		agent.GivenName = *givenName
	}
	if groupID != nil {
		agent.GroupID = *groupID
	}
	agent.AccountID = accountID
	if phone != nil {
		agent.Phone = *phone
	}
	if email != nil {
		agent.Email = *email
	}
	if gID != nil {
		group := &Group{ID: *gID}
		if gName != nil {
			group.Name = *gName
		}
		if gDescription != nil {
			group.Description = *gDescription
		}
		if gOrder != nil {
			group.Order = *gOrder
		}
		agent.Group = group
	}
	return agent, nil
}

// ListActiveAgents returns active agents ordered by display order, group
// joined.
func (r *PGRepository) ListActiveAgents(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.actif ORDER BY a.ordre, a.nom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var agents []Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// GetAgent returns one agent by id.
func (r *PGRepository) GetAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, shared.ErrNotFound
	}
	return agent, err
}

// FindAgentByEmail resolves an agent by contact email.
func (r *PGRepository) FindAgentByEmail(ctx context.Context, email string) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, shared.ErrNotFound
	}
	return agent, err
}

// ListAgentsWithoutAccount returns active agents lacking a linked login
// account, ordered like the roster.
func (r *PGRepository) ListAgentsWithoutAccount(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.actif AND a.user_id IS NULL ORDER BY a.ordre, a.nom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var agents []Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// CreateAgent inserts a new agent record.
func (r *PGRepository) CreateAgent(ctx context.Context, agent Agent) (Agent, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO agents (nom, prenom, groupe_id, type_role, ordre, actif, telephone, email)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, 0), $4, $5, TRUE, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at, updated_at`,
		agent.Surname, agent.GivenName, agent.GroupID, agent.Role, agent.Order, agent.Phone, agent.Email)
	if err := row.Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		return Agent{}, fmt.Errorf("roster: create agent: %w", err)
	}
	agent.Active = true
	return agent, nil
}

// UpdateAgent updates the editable fields of an agent.
func (r *PGRepository) UpdateAgent(ctx context.Context, agent Agent) error {
	tag, err := r.pool.Exec(ctx, `UPDATE agents SET nom = $2, prenom = NULLIF($3, ''), groupe_id = NULLIF($4, 0),
		type_role = $5, ordre = $6, actif = $7, telephone = NULLIF($8, ''), email = NULLIF($9, ''), updated_at = NOW()
		WHERE id = $1`,
		agent.ID, agent.Surname, agent.GivenName, agent.GroupID, agent.Role, agent.Order, agent.Active, agent.Phone, agent.Email)
	if err != nil {
		return fmt.Errorf("roster: update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteAgent removes an agent after cascading its certification and planning
// rows, all in one transaction.
func (r *PGRepository) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM habilitations WHERE agent_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM planning WHERE agent_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// LinkAccount backfills the login account reference on an agent.
func (r *PGRepository) LinkAccount(ctx context.Context, agentID, accountID uuid.UUID, email string) error {
	_, err := r.pool.Exec(ctx, `UPDATE agents SET user_id = $2, email = COALESCE(NULLIF($3, ''), email), updated_at = NOW() WHERE id = $1`,
		agentID, accountID, email)
	return err
}

// ListGroups returns the predefined groups in display order.
func (r *PGRepository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nom, COALESCE(description, ''), ordre FROM groupes ORDER BY ordre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var group Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.Order); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// ListCertifications returns all certification rows.
func (r *PGRepository) ListCertifications(ctx context.Context) ([]Certification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, agent_id, poste, date_obtention FROM habilitations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var certs []Certification
	for rows.Next() {
		var cert Certification
		if err := rows.Scan(&cert.ID, &cert.AgentID, &cert.Post, &cert.GrantedOn); err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// AddCertification grants a post to an agent, dated today. Granting an
// already-held post is a no-op at the logical level (the organizer
// deduplicates), so duplicates are simply allowed to insert.
func (r *PGRepository) AddCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO habilitations (agent_id, poste, date_obtention) VALUES ($1, $2, $3)`,
		agentID, post, time.Now().UTC().Truncate(24*time.Hour))
	return err
}

// RemoveCertification revokes every grant of a post for an agent.
func (r *PGRepository) RemoveCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM habilitations WHERE agent_id = $1 AND poste = $2`, agentID, post)
	return err
}

// ListAssignments returns planning rows whose date falls inside [from, to],
// ordered by date.
func (r *PGRepository) ListAssignments(ctx context.Context, from, to string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, agent_id, to_char(date, 'YYYY-MM-DD'), code_service
		FROM planning WHERE date >= $1 AND date <= $2 ORDER BY date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var entry Assignment
		if err := rows.Scan(&entry.ID, &entry.AgentID, &entry.Date, &entry.Code); err != nil {
			return nil, err
		}
		assignments = append(assignments, entry)
	}
	return assignments, rows.Err()
}

// SaveAssignment upserts the planning row for (agent, date). The unique index
// on (agent_id, date) is the serialization point: concurrent edits of the same
// cell cannot produce duplicate rows, whichever write lands last wins.
func (r *PGRepository) SaveAssignment(ctx context.Context, agentID uuid.UUID, date, code string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO planning (agent_id, date, code_service) VALUES ($1, $2, $3)
		ON CONFLICT (agent_id, date) DO UPDATE SET code_service = EXCLUDED.code_service`,
		agentID, date, code)
	return err
}

// DeleteAssignment clears the planning row for (agent, date).
func (r *PGRepository) DeleteAssignment(ctx context.Context, agentID uuid.UUID, date string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM planning WHERE agent_id = $1 AND date = $2`, agentID, date)
	return err
}

// ListServiceCodes returns the service-code catalog ordered by category then
// code.
func (r *PGRepository) ListServiceCodes(ctx context.Context) ([]ServiceCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, description, categorie FROM codes_services ORDER BY categorie, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []ServiceCode
	for rows.Next() {
		var code ServiceCode
		if err := rows.Scan(&code.Code, &code.Description, &code.Category); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// AvailableYears lists the distinct years present in planning, newest first.
// An empty planning table yields the current year.
func (r *PGRepository) AvailableYears(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT EXTRACT(YEAR FROM date)::int AS y FROM planning ORDER BY y DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []int
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(years) == 0 {
		years = []int{time.Now().Year()}
	}
	return years, nil
}

var _ Repository = (*PGRepository)(nil)
