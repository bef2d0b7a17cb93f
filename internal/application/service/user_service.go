package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

// UserService resolves principals and provisions users
type UserService interface {
	Authenticate(ctx context.Context, userID string) (*entity.User, error)
	Create(ctx context.Context, username, email string, role entity.Role, larkOpenID string) (*entity.User, error)
}

type userServiceImpl struct {
	userRepo port.UserRepository
	logger   Logger
}

func NewUserService(userRepo port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{userRepo: userRepo, logger: orNop(logger)}
}

// Authenticate returns the user behind an id asserted by the auth gateway, or NotFound
func (s *userServiceImpl) Authenticate(ctx context.Context, userID string) (*entity.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.NotFound("User not found")
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	return u, nil
}

func (s *userServiceImpl) Create(ctx context.Context, username, email string, role entity.Role, larkOpenID string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if err := utils.ValidateUsername(username); err != nil {
		return nil, apperr.InvalidArgument("Username must be 2-64 letters, digits, dots, dashes or underscores")
	}
	email = strings.TrimSpace(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.InvalidArgument("A valid email is required")
	}
	if !role.IsValid() {
		return nil, apperr.InvalidArgument(fmt.Sprintf("Unknown role: %s", role))
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict(fmt.Sprintf("Username %s is already taken", username))
	}

	u := &entity.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if larkOpenID != "" {
		u.LarkOpenID = &larkOpenID
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", "user_id", u.ID, "username", username, "role", role)
	return u, nil
}
