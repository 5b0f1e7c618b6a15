package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldActive           = "active"
	fieldStep             = "step"
	fieldIsUsed           = "is_used"
	fieldAttempts         = "attempts"
	fieldTempData         = "temp_data"
	fieldExpiresAt        = "expires_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldLastAccessedAt   = "last_accessed_at"
	fieldPasswordHash     = "password_hash"
	fieldLastLoginAt      = "last_login_at"
	fieldRegistrationStep = "registration_step"
	fieldLockedUntil      = "locked_until"
	fieldCount            = "count"
	fieldLastAttempt      = "last_attempt"
)
