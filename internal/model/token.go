package model

import "time"

// TokenPurpose tags what a signed token may be used for.
type TokenPurpose string

const (
	// PurposeAccess marks session tokens carried by the auth cookie.
	PurposeAccess TokenPurpose = "access"

	// PurposeEmailVerification marks tokens embedded in verification links.
	PurposeEmailVerification TokenPurpose = "email_verification"
)

// IsValid reports whether the purpose is known.
func (p TokenPurpose) IsValid() bool {
	return p == PurposeAccess || p == PurposeEmailVerification
}

// JWTData is the claim payload carried by a signed token.
type JWTData struct {
	UserID    int64
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

// VerificationEmail is a queued request to send a verification link.
type VerificationEmail struct {
	JobID  string `json:"job_id"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}
