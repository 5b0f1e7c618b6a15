package domain

import "time"

// DeviceInfo is the client context captured at login and refresh.
type DeviceInfo struct {
	UserAgent string `json:"user_agent" dynamodbav:"user_agent"`
	IP        string `json:"ip" dynamodbav:"ip"`
}

// Session binds a logical login to a rotating refresh token. One row per login;
// refreshing rotates RefreshToken/LastAccessedAt in place under the same id.
// Revocation sets Enable=false; revoked sessions are never reactivated.
type Session struct {
	SessionID        string     `json:"id" dynamodbav:"session_id"`
	UserID           string     `json:"user_id" dynamodbav:"user_id"`
	RefreshToken     string     `json:"-" dynamodbav:"refresh_token"`
	DeviceInfo       DeviceInfo `json:"device_info" dynamodbav:"device_info"`
	Enable           bool       `json:"enable" dynamodbav:"enable"`
	RefreshExpiresAt int64      `json:"refresh_expires_at" dynamodbav:"refresh_expires_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	LastAccessedAt   time.Time  `json:"last_accessed" dynamodbav:"last_accessed_at"`
	User             *User      `json:"user,omitempty" dynamodbav:"-"`
}
