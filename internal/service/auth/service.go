package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	"github.com/jwalitptl/medicure-api/pkg/auth"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
	}
}

// Signup registers a patient or doctor and signs them in.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error) {
	if !req.Role.Valid() {
		return nil, apperrors.NewBadRequest("role must be patient or doctor", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.NewBadRequest(err.Error(), err)
		}
		return nil, apperrors.NewInternal(err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         req.Role,
		Region:       strings.TrimSpace(req.Region),
	}
	user.ID = uuid.New()
	if req.Role == model.RoleDoctor {
		spec := strings.TrimSpace(req.Specialization)
		user.Specialization = &spec
		user.Rating = model.DefaultDoctorRating
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered")
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to create user: %w", err))
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(ErrInvalidCredentials)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	return s.issue(user)
}

// Me returns the profile behind a validated token.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.PublicProfile, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get user: %w", err))
	}
	return user.Public(), nil
}

// ValidateToken resolves a bearer token to its claims.
func (s *Service) ValidateToken(_ context.Context, token string) (*model.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &model.AuthResponse{Token: token, User: user.Public()}, nil
}
