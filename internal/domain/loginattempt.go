package domain

import "time"

// LoginAttempt tracks consecutive failed logins per email.
// PK: email (lowercased). LockedUntil is set only once Count reaches the
// configured maximum; Count resets to zero on any successful login.
type LoginAttempt struct {
	Email       string     `json:"email" dynamodbav:"email"`
	Count       int        `json:"count" dynamodbav:"count"`
	LastAttempt time.Time  `json:"last_attempt" dynamodbav:"last_attempt"`
	LockedUntil *time.Time `json:"locked_until,omitempty" dynamodbav:"locked_until"`
}

// IsLocked reports whether logins for this email are currently suspended.
func (a *LoginAttempt) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
