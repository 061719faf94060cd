package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cothk/planning/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	agents      []Agent
	certs       []Certification
	assignments map[string]map[uuid.UUID]string // date -> agent -> code

	saveErr   error
	deleteErr error
	listErr   error
}

func newMemoryRepo(agents ...Agent) *memoryRepo {
	return &memoryRepo{
		agents:      agents,
		assignments: make(map[string]map[uuid.UUID]string),
	}
}

func (m *memoryRepo) ListActiveAgents(ctx context.Context) ([]Agent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.agents, nil
}

func (m *memoryRepo) ListCertifications(ctx context.Context) ([]Certification, error) {
	return m.certs, nil
}

func (m *memoryRepo) ListAssignments(ctx context.Context, from, to string) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for date, byAgent := range m.assignments {
		if date < from || date > to {
			continue
		}
		for agentID, code := range byAgent {
			out = append(out, Assignment{AgentID: agentID, Date: date, Code: code})
		}
	}
	return out, nil
}

func (m *memoryRepo) SaveAssignment(ctx context.Context, agentID uuid.UUID, date, code string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignments[date] == nil {
		m.assignments[date] = make(map[uuid.UUID]string)
	}
	m.assignments[date][agentID] = code
	return nil
}

func (m *memoryRepo) DeleteAssignment(ctx context.Context, agentID uuid.UUID, date string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments[date], agentID)
	return nil
}

func (m *memoryRepo) code(date string, agentID uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.assignments[date][agentID]
	return code, ok
}

func testAgents() []Agent {
	return []Agent{
		makeAgent("Martin", "GTI", RoleRoulement, 1),
		makeAgent("Durand", "GTI", RoleReserve, 2),
		makeAgent("Bernard", "GM", RoleRoulement, 1),
	}
}

func TestEngineLoadBuildsEmptyView(t *testing.T) {
	repo := newMemoryRepo(testAgents()...)
	engine := NewEngine(repo, nil)

	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	snap := engine.Snapshot()
	require.Equal(t, StateReady, snap.Status)
	require.Equal(t, "MAI", snap.Month)
	require.Len(t, snap.Days, 31)
	require.Len(t, snap.Planning, 3)
	for _, dayMap := range snap.Planning {
		require.Empty(t, dayMap)
	}
	// 1 May 2026 is both a Friday holiday, 2 May a Saturday.
	require.True(t, snap.Days[0].Holiday)
	require.False(t, snap.Days[0].Weekend)
	require.True(t, snap.Days[1].Weekend)
}

func TestEngineLoadNoAgents(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil)

	err := engine.Load(context.Background(), "MAI", 2026)
	require.ErrorIs(t, err, shared.ErrNoAgents)
	require.Equal(t, StateFailed, engine.Snapshot().Status)
}

func TestEngineLoadUnknownMonth(t *testing.T) {
	repo := newMemoryRepo(testAgents()...)
	engine := NewEngine(repo, nil)

	err := engine.Load(context.Background(), "SMARCH", 2026)
	require.Error(t, err)
	require.Equal(t, StateFailed, engine.Snapshot().Status)
}

func TestEngineUpdateCellWritesThrough(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	key := agents[0].DisplayKey()
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "C26"}))

	code, ok := repo.code("2026-05-08", agents[0].ID)
	require.True(t, ok)
	require.Equal(t, "C26", code)

	cell, ok := engine.Cell(key, 8)
	require.True(t, ok)
	require.Equal(t, "C26", cell.Service)
}

func TestEngineUpdateCellOverwritesExisting(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	key := agents[0].DisplayKey()
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "X"}))
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "O"}))

	code, _ := repo.code("2026-05-08", agents[0].ID)
	require.Equal(t, "O", code)

	// Still exactly one persisted row for the slot.
	rows, err := repo.ListAssignments(context.Background(), "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestEngineUpdateCellEmptyDeletes(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	key := agents[0].DisplayKey()
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "C26"}))
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{}))

	_, ok := repo.code("2026-05-08", agents[0].ID)
	require.False(t, ok)
	_, ok = engine.Cell(key, 8)
	require.False(t, ok)
}

func TestEngineUpdateCellUnknownKeyIsNoop(t *testing.T) {
	repo := newMemoryRepo(testAgents()...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, "Ghost Agent", 8, Cell{Service: "C26"}))

	rows, err := repo.ListAssignments(context.Background(), "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngineUpdateCellBackendFailureLeavesViewUntouched(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	repo.saveErr = errors.New("boom")
	key := agents[0].DisplayKey()
	require.Error(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "C26"}))

	_, ok := engine.Cell(key, 8)
	require.False(t, ok)
}

func TestEngineLoadPicksUpExistingAssignments(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	require.NoError(t, repo.SaveAssignment(context.Background(), agents[1].ID, "2026-05-14", "RH"))

	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	cell, ok := engine.Cell(agents[1].DisplayKey(), 14)
	require.True(t, ok)
	require.Equal(t, "RH", cell.Service)
}

func TestEngineEnsureWindowSkipsCurrent(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	// Write directly to the store; EnsureWindow for the same window must not
	// reload and clobber nothing, the view simply stays as it was.
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, agents[0].DisplayKey(), 3, Cell{Service: "C26"}))
	require.NoError(t, engine.EnsureWindow(context.Background(), "MAI", 2026))
	cell, ok := engine.Cell(agents[0].DisplayKey(), 3)
	require.True(t, ok)
	require.Equal(t, "C26", cell.Service)

	// A different window triggers a fresh load.
	require.NoError(t, engine.EnsureWindow(context.Background(), "JUIN", 2026))
	snap := engine.Snapshot()
	require.Equal(t, "JUIN", snap.Month)
	require.Len(t, snap.Days, 30)
}

func TestEngineReloadCertifications(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	repo.certs = []Certification{{ID: 1, AgentID: agents[0].ID, Post: "PC"}}
	require.NoError(t, engine.ReloadCertifications(context.Background()))

	snap := engine.Snapshot()
	var found []string
	for _, group := range snap.Groups {
		for _, agent := range group.Agents {
			if agent.ID == agents[0].ID {
				found = agent.Certifications
			}
		}
	}
	require.Equal(t, []string{"PC"}, found)
}

func TestEngineSnapshotSkipsEmptyBuckets(t *testing.T) {
	repo := newMemoryRepo(testAgents()...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	snap := engine.Snapshot()
	require.Len(t, snap.Groups, 2)
	require.Equal(t, "GTI", snap.Groups[0].Name)
	require.Equal(t, "GM", snap.Groups[1].Name)
	// Roulement before reserve inside the bucket.
	require.Equal(t, "Martin", snap.Groups[0].Agents[0].DisplayKey)
	require.Equal(t, "Durand", snap.Groups[0].Agents[1].DisplayKey)
}

func TestEngineHomonymsKeepSeparateRows(t *testing.T) {
	twinA := makeAgent("Martin", "GTI", RoleRoulement, 1)
	twinA.GivenName = "Paul"
	twinB := makeAgent("Martin", "GM", RoleRoulement, 2)
	twinB.GivenName = "Paul"

	repo := newMemoryRepo(twinA, twinB)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	// Identical display keys collapse at the boundary index; the write lands
	// on exactly one persisted row, never both.
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, "Martin Paul", 8, Cell{Service: "C26"}))
	rows, err := repo.ListAssignments(context.Background(), "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestEngineUpdateCellTargetsRequestedWindow(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))
	require.NoError(t, engine.Load(context.Background(), "JUIN", 2026))

	// Another session moved the engine to JUIN; an edit addressed to MAI must
	// still land on the May date and must not patch the June view.
	key := agents[0].DisplayKey()
	require.NoError(t, engine.UpdateCell(context.Background(), "MAI", 2026, key, 8, Cell{Service: "C26"}))

	code, ok := repo.code("2026-05-08", agents[0].ID)
	require.True(t, ok)
	require.Equal(t, "C26", code)
	_, ok = repo.code("2026-06-08", agents[0].ID)
	require.False(t, ok)
	_, ok = engine.Cell(key, 8)
	require.False(t, ok)
}

func TestEngineUpdateCellUnknownMonth(t *testing.T) {
	agents := testAgents()
	repo := newMemoryRepo(agents...)
	engine := NewEngine(repo, nil)
	require.NoError(t, engine.Load(context.Background(), "MAI", 2026))

	require.Error(t, engine.UpdateCell(context.Background(), "SMARCH", 2026, agents[0].DisplayKey(), 8, Cell{Service: "C26"}))
	rows, err := repo.ListAssignments(context.Background(), "2026-01-01", "2026-12-31")
	require.NoError(t, err)
	require.Empty(t, rows)
}

// gatedRepo holds the May assignment query open until released, so a test can
// let a later load finish first.
type gatedRepo struct {
	*memoryRepo
	enteredMay chan struct{}
	release    chan struct{}
}

func (g *gatedRepo) ListAssignments(ctx context.Context, from, to string) ([]Assignment, error) {
	if strings.HasPrefix(from, "2026-05") {
		close(g.enteredMay)
		<-g.release
	}
	return g.memoryRepo.ListAssignments(ctx, from, to)
}

func TestEngineDiscardsOvertakenLoad(t *testing.T) {
	repo := &gatedRepo{
		memoryRepo: newMemoryRepo(testAgents()...),
		enteredMay: make(chan struct{}),
		release:    make(chan struct{}),
	}
	engine := NewEngine(repo, nil)

	done := make(chan error, 1)
	go func() {
		done <- engine.Load(context.Background(), "MAI", 2026)
	}()
	<-repo.enteredMay

	// A newer load completes while the first is still in flight.
	require.NoError(t, engine.Load(context.Background(), "JUIN", 2026))
	close(repo.release)
	require.NoError(t, <-done)

	// The slower, older result must not clobber the newer window.
	snap := engine.Snapshot()
	require.Equal(t, StateReady, snap.Status)
	require.Equal(t, "JUIN", snap.Month)
	require.Len(t, snap.Days, 30)
}
