package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cothk/planning/internal/calendar"
	"github.com/cothk/planning/internal/shared"
)

// State is the lifecycle of one (month, year) window.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Repository is the persistence port the engine reconciles against.
type Repository interface {
	ListActiveAgents(ctx context.Context) ([]Agent, error)
	ListCertifications(ctx context.Context) ([]Certification, error)
	ListAssignments(ctx context.Context, from, to string) ([]Assignment, error)
	SaveAssignment(ctx context.Context, agentID uuid.UUID, date, code string) error
	DeleteAssignment(ctx context.Context, agentID uuid.UUID, date string) error
}

// Engine holds the in-memory month view and reconciles cell edits against the
// store: write-through first, local patch only after the store confirmed.
//
// The view is keyed internally by agent ID; display keys are derived at the
// presentation boundary only, so two agents sharing a name never merge rows.
type Engine struct {
	repo   Repository
	logger *slog.Logger

	loadSeq atomic.Uint64

	mu         sync.RWMutex
	state      State
	month      string
	year       int
	agents     []Agent
	organized  Organized
	keyIndex   map[string]uuid.UUID
	view       map[uuid.UUID]map[int]Cell
	lastErr    string
	appliedSeq uint64
}

// NewEngine constructs an idle engine.
func NewEngine(repo Repository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, logger: logger, state: StateIdle}
}

// Load fetches agents, certifications and the month's assignments and
// rebuilds the view. Loads are tagged with a sequence number; a completion
// older than the last applied one is discarded, so a slow early load can
// never overwrite a fresher window.
func (e *Engine) Load(ctx context.Context, month string, year int) error {
	seq := e.loadSeq.Add(1)

	e.mu.Lock()
	e.state = StateLoading
	e.mu.Unlock()

	days := calendar.DaysInMonth(month, year)
	if days == 0 {
		return e.fail(seq, fmt.Errorf("roster: unknown month %q", month))
	}

	agents, err := e.repo.ListActiveAgents(ctx)
	if err != nil {
		return e.fail(seq, fmt.Errorf("roster: load agents: %w", err))
	}
	if len(agents) == 0 {
		return e.fail(seq, shared.ErrNoAgents)
	}

	from := calendar.FormatDate(1, month, year)
	to := calendar.FormatDate(days, month, year)

	var (
		certs       []Certification
		assignments []Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		certs, err = e.repo.ListCertifications(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = e.repo.ListAssignments(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.fail(seq, fmt.Errorf("roster: load window %s %d: %w", month, year, err))
	}

	organized := Organize(agents, certs)

	view := make(map[uuid.UUID]map[int]Cell, len(agents))
	keyIndex := make(map[string]uuid.UUID, len(agents))
	for _, agent := range agents {
		view[agent.ID] = make(map[int]Cell)
		keyIndex[agent.DisplayKey()] = agent.ID
	}
	for _, entry := range assignments {
		dayMap, ok := view[entry.AgentID]
		if !ok {
			// Assignment of an inactive or deleted agent, not part of the view.
			continue
		}
		day, err := calendar.DayOfMonth(entry.Date)
		if err != nil {
			e.logger.Warn("skip malformed planning date", slog.String("date", entry.Date), slog.Any("error", err))
			continue
		}
		dayMap[day] = Cell{Service: entry.Code}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq <= e.appliedSeq {
		e.logger.Info("discard stale roster load", slog.Uint64("seq", seq), slog.Uint64("applied", e.appliedSeq))
		return nil
	}
	e.appliedSeq = seq
	e.state = StateReady
	e.month = month
	e.year = year
	e.agents = agents
	e.organized = organized
	e.keyIndex = keyIndex
	e.view = view
	e.lastErr = ""
	return nil
}

// EnsureWindow loads the requested window unless it is already the current
// ready one.
func (e *Engine) EnsureWindow(ctx context.Context, month string, year int) error {
	e.mu.RLock()
	current := e.state == StateReady && e.month == month && e.year == year
	e.mu.RUnlock()
	if current {
		return nil
	}
	return e.Load(ctx, month, year)
}

// Cell reads a single slot from the current view. The second return is false
// when the row or the day has no value.
func (e *Engine) Cell(displayKey string, day int) (Cell, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.keyIndex[displayKey]
	if !ok {
		return Cell{}, false
	}
	cell, ok := e.view[id][day]
	return cell, ok
}

// UpdateCell writes one cell edit through to the store, then patches the
// local view. An empty value deletes the persisted record. The local patch is
// applied strictly after the store confirmed, so a failed write leaves the
// view untouched and no rollback is ever needed.
//
// The target date is derived from the caller's month and year, never from the
// engine's current window: the engine is shared across sessions, and another
// session switching months must not retarget an in-flight edit. The local
// patch is skipped when the addressed window is no longer the loaded one.
func (e *Engine) UpdateCell(ctx context.Context, month string, year int, displayKey string, day int, value Cell) error {
	if calendar.MonthIndex(month) < 0 {
		return fmt.Errorf("roster: unknown month %q", month)
	}

	e.mu.RLock()
	id, ok := e.keyIndex[displayKey]
	e.mu.RUnlock()

	if !ok {
		// Stale view on the caller's side, not a user-facing failure.
		e.logger.Warn("update for unknown display key", slog.String("key", displayKey), slog.Int("day", day))
		return nil
	}

	date := calendar.FormatDate(day, month, year)

	if value.Empty() {
		if err := e.repo.DeleteAssignment(ctx, id, date); err != nil {
			return fmt.Errorf("roster: delete %s: %w", date, err)
		}
	} else {
		if err := e.repo.SaveAssignment(ctx, id, date, value.Service); err != nil {
			return fmt.Errorf("roster: save %s: %w", date, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.month != month || e.year != year {
		return nil
	}
	dayMap, ok := e.view[id]
	if !ok {
		return nil
	}
	if value.Empty() {
		delete(dayMap, day)
	} else {
		dayMap[day] = value
	}
	return nil
}

// ReloadCertifications re-fetches certification rows and re-derives the
// per-agent sets, leaving agents and assignments untouched.
func (e *Engine) ReloadCertifications(ctx context.Context) error {
	certs, err := e.repo.ListCertifications(ctx)
	if err != nil {
		return fmt.Errorf("roster: reload certifications: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.organized = Organize(e.agents, certs)
	return nil
}

func (e *Engine) fail(seq uint64, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq > e.appliedSeq {
		e.appliedSeq = seq
		e.state = StateFailed
		e.lastErr = err.Error()
	}
	return err
}
