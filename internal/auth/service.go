package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cothk/planning/internal/shared"
)

// AgentDirectory resolves agent profiles behind login accounts.
type AgentDirectory interface {
	FindAgentByEmail(ctx context.Context, email string) (AgentProfile, error)
	LinkAccount(ctx context.Context, agentID, accountID uuid.UUID, email string) error
}

// Service wraps authentication and principal-resolution business rules.
type Service struct {
	repo   Repository
	agents AgentDirectory
	// bootstrapAdmins lists account IDs treated as administrators even when
	// no agent profile resolves for them. Configured, never hardcoded.
	bootstrapAdmins map[uuid.UUID]bool
	logger          *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, agents AgentDirectory, bootstrapAdmins []uuid.UUID, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[uuid.UUID]bool, len(bootstrapAdmins))
	for _, id := range bootstrapAdmins {
		admins[id] = true
	}
	return &Service{repo: repo, agents: agents, bootstrapAdmins: admins, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// CreateAccount registers a login identity with the given password. Returns
// shared.ErrAlreadyRegistered when the email is taken.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateAccount(ctx, email, string(hash))
}

// ResolvePrincipal determines the role of a signed-in account. The agent
// profile is matched by email; a missing account link on the matched agent is
// backfilled on the spot. When no agent resolves, only accounts on the
// bootstrap admin list keep administrative rights.
func (s *Service) ResolvePrincipal(ctx context.Context, accountID uuid.UUID, email string) (Principal, error) {
	principal := Principal{AccountID: accountID, Email: email}

	agent, err := s.agents.FindAgentByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return Principal{}, err
		}
		principal.IsAdmin = s.bootstrapAdmins[accountID]
		if !principal.IsAdmin {
			s.logger.Warn("no agent profile for account", slog.String("email", email))
		}
		return principal, nil
	}

	if agent.AccountID == nil {
		if err := s.agents.LinkAccount(ctx, agent.ID, accountID, email); err != nil {
			s.logger.Warn("backfill agent account link", slog.String("email", email), slog.Any("error", err))
		} else {
			linked := accountID
			agent.AccountID = &linked
		}
	}

	principal.IsAdmin = agent.Admin
	principal.Agent = &agent
	return principal, nil
}
