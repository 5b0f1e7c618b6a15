package domain

import "time"

// PasswordResetFlow is an in-progress password reset, one per email.
// PK: email (lowercased). Active transitions true→false exactly once:
// consumed by a successful reset, cancelled, or superseded by a fresh request.
type PasswordResetFlow struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Active    bool      `json:"active" dynamodbav:"active"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
}

func (f *PasswordResetFlow) IsExpired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// Usable reports whether a reset may still proceed on this flow.
func (f *PasswordResetFlow) Usable(now time.Time) bool {
	return f.Active && !f.IsExpired(now)
}
