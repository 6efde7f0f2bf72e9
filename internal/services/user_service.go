package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/auth"
	"github.com/tasktrack/backend/internal/config"
	"github.com/tasktrack/backend/internal/models"
	"github.com/tasktrack/backend/internal/rbac"
	"github.com/tasktrack/backend/internal/repositories"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the slice of the user repository the service needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
}

type UserService struct {
	users UserStore
	cfg   *config.Config
	log   *zap.Logger
}

func NewUserService(users UserStore, cfg *config.Config, log *zap.Logger) *UserService {
	return &UserService{users: users, cfg: cfg, log: log}
}

// Register creates a user with the user role, or admin if the email is on
// the bootstrap allow-list.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	role := rbac.RoleUser
	if s.cfg.IsAdminEmail(email) {
		role = rbac.RoleAdmin
	}

	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("email already registered")
		}
		return nil, err
	}

	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastActive(ctx, u.ID); err != nil {
		s.log.Debug("last_active update failed", zap.Error(err))
	}

	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *UserService) ChangeRole(ctx context.Context, id uuid.UUID, role string) error {
	if !rbac.IsValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.users.UpdateRole(ctx, id, role)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}
