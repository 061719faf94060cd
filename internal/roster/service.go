package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const codesCacheKey = "planning:codes_services"

// AdminRepository defines the persistence operations behind administrative
// roster management.
type AdminRepository interface {
	GetAgent(ctx context.Context, id uuid.UUID) (Agent, error)
	CreateAgent(ctx context.Context, agent Agent) (Agent, error)
	UpdateAgent(ctx context.Context, agent Agent) error
	DeleteAgent(ctx context.Context, id uuid.UUID) error
	ListGroups(ctx context.Context) ([]Group, error)
	AddCertification(ctx context.Context, agentID uuid.UUID, post string) error
	RemoveCertification(ctx context.Context, agentID uuid.UUID, post string) error
	ListServiceCodes(ctx context.Context) ([]ServiceCode, error)
	AvailableYears(ctx context.Context) ([]int, error)
}

// Service handles roster management business logic: agent lifecycle,
// certification grants and the reference catalogs.
type Service struct {
	repo     AdminRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService builds a Service instance. The Redis client is optional; without
// it the service-code catalog is read straight from the store.
func NewService(repo AdminRepository, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// AgentInput carries the editable fields of an agent record.
type AgentInput struct {
	Surname   string `json:"nom" validate:"required"`
	GivenName string `json:"prenom"`
	GroupID   int64  `json:"groupe_id"`
	Role      string `json:"type_role" validate:"required,oneof=roulement reserve"`
	Order     int    `json:"ordre" validate:"gte=0"`
	Active    bool   `json:"actif"`
	Phone     string `json:"telephone"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// ListGroups returns the predefined groups in display order.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// GetAgent returns one agent.
func (s *Service) GetAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	return s.repo.GetAgent(ctx, id)
}

// CreateAgent registers a new active agent.
func (s *Service) CreateAgent(ctx context.Context, input AgentInput) (Agent, error) {
	if input.Surname == "" {
		return Agent{}, errors.New("surname is required")
	}
	return s.repo.CreateAgent(ctx, Agent{
		Surname:   input.Surname,
		GivenName: input.GivenName,
		GroupID:   input.GroupID,
		Role:      input.Role,
		Order:     input.Order,
		Phone:     input.Phone,
		Email:     input.Email,
	})
}

// UpdateAgent applies the editable fields onto an existing agent.
func (s *Service) UpdateAgent(ctx context.Context, id uuid.UUID, input AgentInput) (Agent, error) {
	current, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return Agent{}, err
	}
	current.Surname = input.Surname
	current.GivenName = input.GivenName
	current.GroupID = input.GroupID
	current.Role = input.Role
	current.Order = input.Order
	current.Active = input.Active
	current.Phone = input.Phone
	current.Email = input.Email
	if err := s.repo.UpdateAgent(ctx, current); err != nil {
		return Agent{}, err
	}
	return s.repo.GetAgent(ctx, id)
}

// DeleteAgent removes an agent and cascades its certification and planning
// records first.
func (s *Service) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAgent(ctx, id)
}

// GrantCertification gives an agent a post certification dated today.
func (s *Service) GrantCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	if post == "" {
		return errors.New("post code is required")
	}
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return err
	}
	return s.repo.AddCertification(ctx, agentID, post)
}

// RevokeCertification removes every grant of the post for the agent.
func (s *Service) RevokeCertification(ctx context.Context, agentID uuid.UUID, post string) error {
	if post == "" {
		return errors.New("post code is required")
	}
	return s.repo.RemoveCertification(ctx, agentID, post)
}

// ServiceCodes returns the service-code catalog, cached in Redis. Cache
// trouble falls back to the store.
func (s *Service) ServiceCodes(ctx context.Context) ([]ServiceCode, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, codesCacheKey).Bytes(); err == nil {
			var codes []ServiceCode
			if err := json.Unmarshal(data, &codes); err == nil {
				return codes, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("service codes cache read", slog.Any("error", err))
		}
	}

	codes, err := s.repo.ListServiceCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster: list service codes: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(codes); err == nil {
			if err := s.cache.Set(ctx, codesCacheKey, data, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("service codes cache write", slog.Any("error", err))
			}
		}
	}
	return codes, nil
}

// AvailableYears lists the years with planning data, newest first.
func (s *Service) AvailableYears(ctx context.Context) ([]int, error) {
	return s.repo.AvailableYears(ctx)
}
