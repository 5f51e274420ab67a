package models

import "time"

// VerificationTTL is how long a verification link stays valid after it was issued.
const VerificationTTL = 24 * time.Hour

type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationExpired  VerificationState = "expired"
	VerificationVerified VerificationState = "verified"
)

type EmailVerification struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Token      string     `json:"-"`
	Verified   bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// IsExpired is measured from CreatedAt; re-sending a link does not extend it.
func (v EmailVerification) IsExpired(now time.Time) bool {
	return v.CreatedAt.Add(VerificationTTL).Before(now)
}

func (v EmailVerification) State(now time.Time) VerificationState {
	switch {
	case v.Verified:
		return VerificationVerified
	case v.IsExpired(now):
		return VerificationExpired
	default:
		return VerificationPending
	}
}
