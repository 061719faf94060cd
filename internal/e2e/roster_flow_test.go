package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cothk/planning/internal/app"
	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/notes"
	"github.com/cothk/planning/internal/provision"
	"github.com/cothk/planning/internal/roster"
	"github.com/cothk/planning/internal/shared"
	_ "github.com/cothk/planning/internal/testing/guard"
)

// fakeStore backs every repository port with one in-memory dataset so the
// full HTTP stack can run without Postgres.
type fakeStore struct {
	mu          sync.Mutex
	agents      map[uuid.UUID]roster.Agent
	certs       []roster.Certification
	assignments map[string]map[uuid.UUID]string
	accounts    map[string]*auth.Account
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents:      make(map[uuid.UUID]roster.Agent),
		assignments: make(map[string]map[uuid.UUID]string),
		accounts:    make(map[string]*auth.Account),
	}
}

func (s *fakeStore) addAgent(agent roster.Agent) roster.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	s.agents[agent.ID] = agent
	return agent
}

func (s *fakeStore) addAccount(t *testing.T, email, password string) *auth.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	account := &auth.Account{ID: uuid.New(), Email: email, PasswordHash: string(hash), IsActive: true}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account
	return account
}

func (s *fakeStore) ListActiveAgents(ctx context.Context) ([]roster.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []roster.Agent
	for _, agent := range s.agents {
		if agent.Active {
			out = append(out, agent)
		}
	}
	return out, nil
}

func (s *fakeStore) ListCertifications(ctx context.Context) ([]roster.Certification, error) {
	return s.certs, nil
}

func (s *fakeStore) ListAssignments(ctx context.Context, from, to string) ([]roster.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []roster.Assignment
	for date, byAgent := range s.assignments {
		if date < from || date > to {
			continue
		}
		for agentID, code := range byAgent {
			out = append(out, roster.Assignment{AgentID: agentID, Date: date, Code: code})
		}
	}
	return out, nil
}

func (s *fakeStore) SaveAssignment(ctx context.Context, agentID uuid.UUID, date, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assignments[date] == nil {
		s.assignments[date] = make(map[uuid.UUID]string)
	}
	s.assignments[date][agentID] = code
	return nil
}

func (s *fakeStore) DeleteAssignment(ctx context.Context, agentID uuid.UUID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments[date], agentID)
	return nil
}

func (s *fakeStore) GetAgent(ctx context.Context, id uuid.UUID) (roster.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return roster.Agent{}, shared.ErrNotFound
	}
	return agent, nil
}

func (s *fakeStore) CreateAgent(ctx context.Context, agent roster.Agent) (roster.Agent, error) {
	agent.Active = true
	return s.addAgent(agent), nil
}

func (s *fakeStore) UpdateAgent(ctx context.Context, agent roster.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.ID]; !ok {
		return shared.ErrNotFound
	}
	s.agents[agent.ID] = agent
	return nil
}

func (s *fakeStore) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.agents, id)
	return nil
}

func (s *fakeStore) ListGroups(ctx context.Context) ([]roster.Group, error) {
	return []roster.Group{{ID: 1, Name: "GTI", Order: 1}}, nil
}

func (s *fakeStore) AddCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	s.certs = append(s.certs, roster.Certification{AgentID: agentID, Post: post})
	return nil
}

func (s *fakeStore) RemoveCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	kept := s.certs[:0]
	for _, cert := range s.certs {
		if cert.AgentID != agentID || cert.Post != post {
			kept = append(kept, cert)
		}
	}
	s.certs = kept
	return nil
}

func (s *fakeStore) ListServiceCodes(ctx context.Context) ([]roster.ServiceCode, error) {
	return []roster.ServiceCode{{Code: "C26", Category: "jour"}}, nil
}

func (s *fakeStore) AvailableYears(ctx context.Context) ([]int, error) {
	return []int{2026}, nil
}

func (s *fakeStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (s *fakeStore) CreateAccount(ctx context.Context, email, passwordHash string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return nil, shared.ErrAlreadyRegistered
	}
	account := &auth.Account{ID: uuid.New(), Email: email, PasswordHash: passwordHash, IsActive: true}
	s.accounts[email] = account
	return account, nil
}

func (s *fakeStore) FindAgentByEmail(ctx context.Context, email string) (auth.AgentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, agent := range s.agents {
		if agent.Email == email {
			return auth.AgentProfile{
				ID:         agent.ID,
				DisplayKey: agent.DisplayKey(),
				Admin:      agent.Admin,
				AccountID:  agent.AccountID,
			}, nil
		}
	}
	return auth.AgentProfile{}, shared.ErrNotFound
}

func (s *fakeStore) LinkAccount(ctx context.Context, agentID, accountID uuid.UUID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return shared.ErrNotFound
	}
	linked := accountID
	agent.AccountID = &linked
	if email != "" && agent.Email == "" {
		agent.Email = email
	}
	s.agents[agentID] = agent
	return nil
}

func (s *fakeStore) ListAgentsWithoutAccount(ctx context.Context) ([]roster.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []roster.Agent
	for _, agent := range s.agents {
		if agent.Active && agent.AccountID == nil {
			out = append(out, agent)
		}
	}
	return out, nil
}

type testEnv struct {
	server *httptest.Server
	store  *fakeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	store := newFakeStore()
	logger := app.NewLogger(nil)
	cfg := &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}

	sessionManager := shared.NewSessionManager(redisClient, "planning_session", "test-secret", time.Hour, false)

	engine := roster.NewEngine(store, logger)
	rosterService := roster.NewService(store, redisClient, time.Minute, logger)
	rosterHandler := roster.NewHandler(logger, engine, rosterService, 2026)

	authService := auth.NewService(store, store, nil, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	provisionService := provision.NewService(store, authService, "cothk.fr", "changeme", logger)
	provisionHandler := provision.NewHandler(logger, provisionService, nil)

	notesHandler := notes.NewHandler(logger, notes.NewRepository(nil))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		RosterHandler:    rosterHandler,
		ProvisionHandler: provisionHandler,
		NotesHandler:     notesHandler,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) login(t *testing.T, client *http.Client, email, password string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(e.server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func seedRoster(t *testing.T, env *testEnv) (admin, agent roster.Agent) {
	adminAccount := env.store.addAccount(t, "martin@cothk.fr", "secret")
	env.store.addAccount(t, "durand@cothk.fr", "secret")

	admin = env.store.addAgent(roster.Agent{
		Surname: "Martin", GivenName: "Paul", Role: roster.RoleRoulement, Order: 1,
		Active: true, Admin: true, Email: "martin@cothk.fr", AccountID: &adminAccount.ID,
		Group: &roster.Group{ID: 1, Name: "GTI"},
	})
	agent = env.store.addAgent(roster.Agent{
		Surname: "Durand", GivenName: "Jean", Role: roster.RoleRoulement, Order: 2,
		Active: true, Email: "durand@cothk.fr",
		Group: &roster.Group{ID: 1, Name: "GTI"},
	})
	return admin, agent
}

func TestAnonymousIsRejected(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)

	client := env.client(t)
	resp := env.do(t, client, http.MethodGet, "/api/roster?month=MAI", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginAndLoadRoster(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)

	client := env.client(t)
	principal := env.login(t, client, "martin@cothk.fr", "secret")
	require.Equal(t, true, principal["is_admin"])
	require.Equal(t, "Martin Paul", principal["display_key"])

	resp := env.do(t, client, http.MethodGet, "/api/roster?month=MAI&year=2026", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap roster.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, roster.StateReady, snap.Status)
	require.Len(t, snap.Days, 31)
	require.Contains(t, snap.Planning, "Durand Jean")
}

func TestAdminEditsAnyCell(t *testing.T) {
	env := newTestEnv(t)
	_, agent := seedRoster(t, env)

	client := env.client(t)
	env.login(t, client, "martin@cothk.fr", "secret")

	env.do(t, client, http.MethodGet, "/api/roster?month=MAI&year=2026", nil).Body.Close()

	resp := env.do(t, client, http.MethodPut, "/api/roster/cell", map[string]any{
		"month":       "MAI",
		"year":        2026,
		"display_key": "Durand Jean",
		"day":         8,
		"value":       "C26",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	env.store.mu.Lock()
	code := env.store.assignments["2026-05-08"][agent.ID]
	env.store.mu.Unlock()
	require.Equal(t, "C26", code)
}

func TestNonAdminEditsOwnRowOnly(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)

	client := env.client(t)
	env.login(t, client, "durand@cothk.fr", "secret")

	env.do(t, client, http.MethodGet, "/api/roster?month=MAI&year=2026", nil).Body.Close()

	forbidden := env.do(t, client, http.MethodPut, "/api/roster/cell", map[string]any{
		"month":       "MAI",
		"year":        2026,
		"display_key": "Martin Paul",
		"day":         8,
		"value":       "C26",
	})
	forbidden.Body.Close()
	require.Equal(t, http.StatusForbidden, forbidden.StatusCode)

	// The object form of a cell value is accepted alongside the bare string.
	own := env.do(t, client, http.MethodPut, "/api/roster/cell", map[string]any{
		"month":       "MAI",
		"year":        2026,
		"display_key": "Durand Jean",
		"day":         8,
		"value":       map[string]string{"service": "RH"},
	})
	own.Body.Close()
	require.Equal(t, http.StatusNoContent, own.StatusCode)
}

func TestNonAdminCannotManageAgents(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)

	client := env.client(t)
	env.login(t, client, "durand@cothk.fr", "secret")

	resp := env.do(t, client, http.MethodPost, "/api/agents", map[string]any{
		"nom": "Petit", "type_role": "roulement",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBulkProvisioning(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	// An agent without an account gets one from the batch.
	env.store.addAgent(roster.Agent{
		Surname: "Bernard", Role: roster.RoleReserve, Order: 1, Active: true,
		Group: &roster.Group{ID: 1, Name: "GTI"},
	})

	client := env.client(t)
	env.login(t, client, "martin@cothk.fr", "secret")

	resp := env.do(t, client, http.MethodPost, "/api/accounts/provision", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary provision.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Created)

	env.store.mu.Lock()
	_, created := env.store.accounts["bernard@cothk.fr"]
	env.store.mu.Unlock()
	require.True(t, created)
}
