// Package provision creates login accounts in bulk for agents that have none
// yet, deriving the login email from the agent's surname.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/roster"
	"github.com/cothk/planning/internal/shared"
)

// Outcome classifies the result of one account creation attempt.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeExists  Outcome = "already-exists"
	OutcomeError   Outcome = "error"
)

// Result is the per-agent outcome of a provisioning run.
type Result struct {
	AgentID uuid.UUID `json:"agent_id"`
	Email   string    `json:"email"`
	Outcome Outcome   `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// Summary aggregates a provisioning run.
type Summary struct {
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Errors   int      `json:"errors"`
	Total    int      `json:"total"`
	Warning  string   `json:"warning,omitempty"`
	Results  []Result `json:"results"`
}

// Directory lists agents lacking accounts and records created links.
type Directory interface {
	ListAgentsWithoutAccount(ctx context.Context) ([]roster.Agent, error)
	LinkAccount(ctx context.Context, agentID, accountID uuid.UUID, email string) error
}

// Accounts is the login-identity service consumed by provisioning.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password string) (*auth.Account, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Account, error)
}

// Service runs bulk account provisioning.
type Service struct {
	directory Directory
	accounts  Accounts
	domain    string
	password  string
	logger    *slog.Logger
}

// NewService constructs the provisioning service. domain is the fixed
// organizational email suffix, password the fixed default credential.
func NewService(directory Directory, accounts Accounts, domain, password string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{directory: directory, accounts: accounts, domain: domain, password: password, logger: logger}
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// LoginEmail derives the canonical login identifier from a surname:
// lower-cased, whitespace runs collapsed to single hyphens, diacritics
// stripped, fixed domain suffix. Empty surname yields an empty identifier.
func LoginEmail(surname, domain string) string {
	clean := strings.ToLower(strings.TrimSpace(surname))
	if clean == "" {
		return ""
	}
	clean = strings.Join(strings.Fields(clean), "-")
	if stripped, _, err := transform.String(stripAccents, clean); err == nil {
		clean = stripped
	}
	return clean + "@" + domain
}

// Run provisions accounts for every agent without one, strictly one at a
// time so that the admin session side effect of each creation can be
// repaired before the next call. Per-agent failures never abort the batch.
// Afterwards the provisioning principal is re-authenticated best-effort; a
// failure there is a warning in the summary, not an error.
func (s *Service) Run(ctx context.Context, adminEmail string) (Summary, error) {
	agents, err := s.directory.ListAgentsWithoutAccount(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(agents)}
	for _, agent := range agents {
		email := agent.Email
		if email == "" {
			email = LoginEmail(agent.Surname, s.domain)
		}
		result := Result{AgentID: agent.ID, Email: email}

		switch err := s.createOne(ctx, agent, email); {
		case err == nil:
			result.Outcome = OutcomeCreated
			summary.Created++
		case errors.Is(err, shared.ErrAlreadyRegistered):
			result.Outcome = OutcomeExists
			summary.Existing++
		default:
			result.Outcome = OutcomeError
			result.Error = err.Error()
			summary.Errors++
			s.logger.Error("provision account", slog.String("email", email), slog.Any("error", err))
		}
		summary.Results = append(summary.Results, result)
	}

	if adminEmail != "" {
		if _, err := s.accounts.Authenticate(ctx, adminEmail, s.password); err != nil {
			summary.Warning = "admin session could not be restored, please sign in again"
			s.logger.Warn("restore admin session", slog.String("email", adminEmail), slog.Any("error", err))
		}
	}
	return summary, nil
}

func (s *Service) createOne(ctx context.Context, agent roster.Agent, email string) error {
	if email == "" {
		return errEmptyEmail
	}
	account, err := s.accounts.CreateAccount(ctx, email, s.password)
	if err != nil {
		return err
	}
	if err := s.directory.LinkAccount(ctx, agent.ID, account.ID, email); err != nil {
		// The account exists either way; the link backfills on next login.
		s.logger.Warn("link created account", slog.String("email", email), slog.Any("error", err))
	}
	return nil
}

var errEmptyEmail = errors.New("agent has no surname to derive a login from")
