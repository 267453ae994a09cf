package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

// ErrEmailTaken indicates another account already uses the email.
var ErrEmailTaken = errors.New("email already registered")

// UserService provisions administrator and teacher accounts.
type UserService interface {
	Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error)
	ListTeachers(ctx context.Context) ([]dto.UserResponse, error)
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	cost      int
}

// NewUserService constructs the account provisioning service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		cost:      bcrypt.DefaultCost,
	}
}

func (s *userService) Create(ctx context.Context, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	payload.Email = models.NormalizeEmail(payload.Email)
	payload.Role = strings.ToLower(strings.TrimSpace(payload.Role))
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if _, err := s.repo.FindByEmail(ctx, payload.Email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.cost)
	if err != nil {
		return dto.UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        payload.Email,
		PasswordHash: string(hash),
		Role:         payload.Role,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user provisioned")
	return dto.NewUserResponse(user), nil
}

func (s *userService) ListTeachers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.repo.ListByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, dto.NewUserResponse(user))
	}
	return responses, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is already registered.
func (s *userService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}

	_, err := s.Create(ctx, dto.UserCreateRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}
