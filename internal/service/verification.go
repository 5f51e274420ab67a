package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"todoapp/internal/clock"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"
	"todoapp/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type VerificationStore interface {
	UserRepository
	VerificationRepository
}

// VerifyResult describes a successful verify call. AlreadyVerified is set when
// the record had been verified before, in which case no welcome was sent.
type VerifyResult struct {
	Verification    *models.EmailVerification
	AlreadyVerified bool
	WelcomeSent     bool
	NotifyErr       error
}

// IssueResult describes a verification email that was issued. Created is set for
// a new record and Rotated when an expired record got a fresh token.
type IssueResult struct {
	Verification *models.EmailVerification
	Created      bool
	Rotated      bool
	Sent         bool
	NotifyErr    error
}

type VerificationService struct {
	store    VerificationStore
	notifier notify.Notifier
	clock    clock.Clock
}

func NewVerificationService(store VerificationStore, notifier notify.Notifier, clk clock.Clock) *VerificationService {
	if clk == nil {
		clk = clock.System{}
	}
	return &VerificationService{store: store, notifier: notifier, clock: clk}
}

// Verify consumes a verification token. It fails with ErrInvalidToken when no
// record matches and ErrExpiredToken when a pending record is past its TTL.
func (s *VerificationService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, errors.ErrInvalidToken
	}

	v, err := s.store.GetVerificationByToken(ctx, token)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrInvalidToken
		}
		return nil, err
	}

	if v.Verified {
		return &VerifyResult{Verification: v, AlreadyVerified: true}, nil
	}
	now := s.clock.Now()
	if v.IsExpired(now) {
		return nil, errors.ErrExpiredToken
	}

	won, err := s.store.MarkVerified(ctx, v.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	v.Verified = true
	if !won {
		return &VerifyResult{Verification: v, AlreadyVerified: true}, nil
	}
	v.VerifiedAt = &now

	result := &VerifyResult{Verification: v}
	user, err := s.store.GetUserByID(ctx, v.UserID)
	if err != nil {
		result.NotifyErr = err
		log.Error().Err(err).Str("user_id", v.UserID).Msg("welcome email skipped, user lookup failed")
		return result, nil
	}
	result.NotifyErr = s.notifier.Notify(ctx, recipient(user), notify.KindWelcome, notify.Params{})
	result.WelcomeSent = result.NotifyErr == nil
	if result.NotifyErr != nil {
		log.Error().Err(result.NotifyErr).Str("user_id", user.ID).Msg("welcome email failed")
	}
	return result, nil
}

// Issue makes sure the user has a usable verification record and mails its
// link. A pending record keeps its token; an expired one is rotated in place.
func (s *VerificationService) Issue(ctx context.Context, userID string) (*IssueResult, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.ensure(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	result.NotifyErr = s.notifier.Notify(ctx, recipient(user), notify.KindVerification, notify.Params{Token: result.Verification.Token})
	result.Sent = result.NotifyErr == nil
	if result.NotifyErr != nil {
		log.Error().Err(result.NotifyErr).Str("user_id", user.ID).Msg("verification email failed")
	}
	return result, nil
}

// Status returns the user's verification record, or nil when none was created yet.
func (s *VerificationService) Status(ctx context.Context, userID string) (*models.EmailVerification, error) {
	v, err := s.store.GetVerificationByUser(ctx, userID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (s *VerificationService) ensure(ctx context.Context, userID string) (*IssueResult, error) {
	now := s.clock.Now()

	v, err := s.store.GetVerificationByUser(ctx, userID)
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		v = &models.EmailVerification{
			ID:        uuid.New().String(),
			UserID:    userID,
			Token:     uuid.New().String(),
			CreatedAt: now,
		}
		err = s.store.CreateVerification(ctx, v)
		if err == nil {
			return &IssueResult{Verification: v, Created: true}, nil
		}
		if !stderrors.Is(err, errors.ErrConflict) {
			return nil, err
		}
		// Lost a race with another request creating the record.
		v, err = s.store.GetVerificationByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if v.Verified {
		return nil, errors.ErrAlreadyVerified
	}
	if !v.IsExpired(now) {
		return &IssueResult{Verification: v}, nil
	}

	v.Token = uuid.New().String()
	v.CreatedAt = now
	if err := s.store.ReissueVerification(ctx, v); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			// Verified between the read and the rotation.
			if current, getErr := s.store.GetVerificationByUser(ctx, userID); getErr == nil && current.Verified {
				return nil, errors.ErrAlreadyVerified
			}
		}
		return nil, err
	}
	return &IssueResult{Verification: v, Rotated: true}, nil
}

func recipient(u *models.User) notify.Recipient {
	return notify.Recipient{Email: u.Email, Username: u.Username}
}
