package service

import (
	"context"
	stderrors "errors"
	"strings"

	"todoapp/internal/clock"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type AccountService struct {
	users         UserRepository
	verifications *VerificationService
	clock         clock.Clock
	cache         StatsCache
}

func NewAccountService(users UserRepository, verifications *VerificationService, clk clock.Clock, cache StatsCache) *AccountService {
	if clk == nil {
		clk = clock.System{}
	}
	return &AccountService{users: users, verifications: verifications, clock: clk, cache: cache}
}

// Register creates the account and sends the first verification email. A
// failed email does not undo the registration.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *IssueResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := Validate(req); err != nil {
		return nil, nil, err
	}

	if existing, _ := s.users.GetUserByUsername(ctx, req.Username); existing != nil {
		return nil, nil, errors.ErrUserAlreadyExists
	}
	if existing, _ := s.users.GetUserByEmail(ctx, req.Email); existing != nil {
		return nil, nil, errors.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	user := models.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hash),
		CreatedAt: s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		if stderrors.Is(err, errors.ErrConflict) {
			return nil, nil, errors.ErrUserAlreadyExists
		}
		return nil, nil, err
	}

	issued, err := s.verifications.Issue(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("verification record not issued at registration")
	}
	return &user, issued, nil
}

func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	if err := Validate(req); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) || stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// DeleteAccount removes the user; the store cascades to everything they own.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Warn().Err(err).Str("owner_id", id).Msg("statistics cache invalidation failed")
		}
	}
	return nil
}
