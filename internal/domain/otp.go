package domain

import "time"

// OtpPurpose distinguishes the flows a one-time code can belong to.
// Codes are keyed per (email, purpose) so flows never consume each other's codes.
type OtpPurpose string

const (
	PurposeRegistration  OtpPurpose = "registration"
	PurposePasswordReset OtpPurpose = "password_reset"
)

// OtpRecord is a one-time numeric code for a (email, purpose) pair.
// PK: email (lowercased), SK: purpose. PurgeAt is a Unix timestamp used as
// DynamoDB TTL so consumed codes are garbage-collected after the retention window.
type OtpRecord struct {
	ID          string            `json:"id" dynamodbav:"id"`
	Email       string            `json:"email" dynamodbav:"email"`
	Purpose     OtpPurpose        `json:"purpose" dynamodbav:"purpose"`
	Code        string            `json:"-" dynamodbav:"code"`
	CreatedAt   time.Time         `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at" dynamodbav:"expires_at"`
	IsUsed      bool              `json:"is_used" dynamodbav:"is_used"`
	Attempts    int               `json:"attempts" dynamodbav:"attempts"`
	MaxAttempts int               `json:"max_attempts" dynamodbav:"max_attempts"`
	Metadata    map[string]string `json:"metadata,omitempty" dynamodbav:"metadata"`
	PurgeAt     int64             `json:"-" dynamodbav:"purge_at"`
}

func (o *OtpRecord) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Actionable reports whether the record can still be verified against.
func (o *OtpRecord) Actionable(now time.Time) bool {
	return !o.IsUsed && !o.IsExpired(now)
}
