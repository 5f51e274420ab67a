package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"time"

	"todoapp/internal/clock"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"
	"todoapp/internal/notify"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultResetTTL = 72 * time.Hour

	resetPurpose = "password_reset"
)

type resetClaims struct {
	UserID      string `json:"user_id"`
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwd"`
	jwt.RegisteredClaims
}

// PasswordResetService issues and redeems signed reset links. A token embeds a
// fingerprint of the password hash, so it stops working once the password
// changes.
type PasswordResetService struct {
	users    UserRepository
	notifier notify.Notifier
	clock    clock.Clock
	secret   []byte
	ttl      time.Duration
}

func NewPasswordResetService(users UserRepository, notifier notify.Notifier, clk clock.Clock, secret string, ttl time.Duration) *PasswordResetService {
	if clk == nil {
		clk = clock.System{}
	}
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &PasswordResetService{users: users, notifier: notifier, clock: clk, secret: []byte(secret), ttl: ttl}
}

// RequestReset mails a reset link when the address belongs to an account. It
// returns nil for unknown addresses so callers cannot discover which accounts exist.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := Validate(models.PasswordResetRequest{Email: email}); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) || stderrors.Is(err, errors.ErrNotFound) {
			log.Info().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.Token(user)
	if err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, recipient(user), notify.KindPasswordReset, notify.Params{Token: token}); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("password reset email failed")
	}
	return nil
}

// Token signs a reset token for user.
func (s *PasswordResetService) Token(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := resetClaims{
		UserID:      user.ID,
		Purpose:     resetPurpose,
		Fingerprint: fingerprint(user.Password),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Check resolves a reset token to its user without changing anything.
func (s *PasswordResetService) Check(ctx context.Context, token string) (*models.User, error) {
	var claims resetClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrExpiredToken
		}
		return nil, errors.ErrInvalidToken
	}
	if claims.Purpose != resetPurpose || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) || stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, err
	}
	if claims.Fingerprint != fingerprint(user.Password) {
		return nil, errors.ErrInvalidToken
	}
	return user, nil
}

func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, password string) error {
	user, err := s.Check(ctx, token)
	if err != nil {
		return err
	}
	if err := Validate(models.PasswordResetConfirmRequest{Password: password}); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}
