// Package roster implements the monthly planning core: agent and group
// records, certification (habilitation) registry, per-day service assignments
// and the reconciliation engine that keeps an in-memory month view consistent
// with the persisted store.
package roster

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role tags distinguishing regularly rostered agents from the on-call pool.
const (
	RoleRoulement = "roulement"
	RoleReserve   = "reserve"
)

// UnclassifiedGroup is the sentinel bucket for agents whose group is missing
// or unresolvable.
const UnclassifiedGroup = "DIVERS"

// GroupOrder is the canonical display order of the predefined groups.
var GroupOrder = []string{
	"GTI", "Appui GTI / ROK", "GM",
	"GPIV", "GIV", "RLIV",
	"RLIV PSE", "RLIV HC", "RLIV ZDC", "RLIV ZD", "RLIV ZDE",
}

// Group is a named organizational bucket with a display order.
type Group struct {
	ID          int64  `json:"id"`
	Name        string `json:"nom"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"ordre"`
}

// Agent is the identity record of a rostered operator.
type Agent struct {
	ID        uuid.UUID  `json:"id"`
	Surname   string     `json:"nom"`
	GivenName string     `json:"prenom,omitempty"`
	GroupID   int64      `json:"groupe_id"`
	Group     *Group     `json:"groupe,omitempty"`
	Role      string     `json:"type_role"`
	Order     int        `json:"ordre"`
	Active    bool       `json:"actif"`
	AccountID *uuid.UUID `json:"user_id,omitempty"`
	Admin     bool       `json:"is_admin"`
	Phone     string     `json:"telephone,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DisplayKey derives the "surname givenname" string addressing the agent's
// roster row from the UI layer. The given name is omitted when absent.
func (a Agent) DisplayKey() string {
	if a.GivenName == "" {
		return a.Surname
	}
	return a.Surname + " " + a.GivenName
}

// GroupName resolves the agent's group name, falling back to the
// unclassified bucket.
func (a Agent) GroupName() string {
	if a.Group == nil || a.Group.Name == "" {
		return UnclassifiedGroup
	}
	return a.Group.Name
}

// Certification grants an agent eligibility for a named post.
type Certification struct {
	ID        int64     `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	Post      string    `json:"poste"`
	GrantedOn time.Time `json:"date_obtention"`
}

// Assignment is one persisted planning fact, unique per (agent, date).
type Assignment struct {
	ID      int64     `json:"id"`
	AgentID uuid.UUID `json:"agent_id"`
	Date    string    `json:"date"`
	Code    string    `json:"code_service"`
}

// ServiceCode is one entry of the service-code catalog.
type ServiceCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"categorie"`
}

// Cell is the value of a single (agent, day) slot in the month view.
type Cell struct {
	Service string `json:"service"`
}

// UnmarshalJSON accepts either a bare service-code string or an object
// carrying a "service" field, matching what the UI sends.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &c.Service)
	}
	type plain Cell
	return json.Unmarshal(data, (*plain)(c))
}

// Empty reports whether the cell carries no service code, which clears the
// slot on write.
func (c Cell) Empty() bool {
	return c.Service == ""
}
