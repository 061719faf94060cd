package roster

import (
	"github.com/google/uuid"

	"github.com/cothk/planning/internal/calendar"
)

// AgentView is the presentation shape of one roster row.
type AgentView struct {
	ID             uuid.UUID `json:"id"`
	DisplayKey     string    `json:"display_key"`
	Role           string    `json:"type_role"`
	Order          int       `json:"ordre"`
	HasAccount     bool      `json:"has_account"`
	Certifications []string  `json:"habilitations,omitempty"`
}

// DayView carries the calendar classification of one column header.
type DayView struct {
	Day     int    `json:"day"`
	Weekday string `json:"weekday"`
	Weekend bool   `json:"weekend"`
	Holiday bool   `json:"holiday"`
}

// GroupView is one ordered bucket of roster rows.
type GroupView struct {
	Name   string      `json:"nom"`
	Agents []AgentView `json:"agents"`
}

// Snapshot is the denormalized projection of the current window handed to
// the UI layer. Planning is keyed by display key here, at the presentation
// boundary only.
type Snapshot struct {
	Status   State                   `json:"status"`
	Error    string                  `json:"error,omitempty"`
	Month    string                  `json:"month"`
	Year     int                     `json:"year"`
	Days     []DayView               `json:"days"`
	Groups   []GroupView             `json:"groups"`
	Planning map[string]map[int]Cell `json:"planning"`
}

// Snapshot projects the engine state for presentation.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Status:   e.state,
		Error:    e.lastErr,
		Month:    e.month,
		Year:     e.year,
		Planning: make(map[string]map[int]Cell, len(e.agents)),
	}
	if e.state != StateReady {
		return snap
	}

	days := calendar.DaysInMonth(e.month, e.year)
	snap.Days = make([]DayView, 0, days)
	for day := 1; day <= days; day++ {
		info := calendar.Classify(day, e.month, e.year)
		snap.Days = append(snap.Days, DayView{
			Day:     day,
			Weekday: calendar.WeekdayShort(day, e.month, e.year),
			Weekend: info.Weekend,
			Holiday: info.Holiday,
		})
	}

	for _, name := range e.organized.GroupNames {
		bucket := e.organized.GroupedAgents[name]
		if len(bucket) == 0 {
			continue
		}
		gv := GroupView{Name: name, Agents: make([]AgentView, 0, len(bucket))}
		for _, agent := range bucket {
			gv.Agents = append(gv.Agents, AgentView{
				ID:             agent.ID,
				DisplayKey:     agent.DisplayKey(),
				Role:           agent.Role,
				Order:          agent.Order,
				HasAccount:     agent.AccountID != nil,
				Certifications: e.organized.CertsByAgent[agent.ID],
			})
		}
		snap.Groups = append(snap.Groups, gv)
	}

	for _, agent := range e.agents {
		dayMap := make(map[int]Cell, len(e.view[agent.ID]))
		for day, cell := range e.view[agent.ID] {
			dayMap[day] = cell
		}
		snap.Planning[agent.DisplayKey()] = dayMap
	}
	return snap
}
