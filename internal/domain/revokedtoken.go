package domain

// RevokedToken blacklists a token by its jti until its natural expiry.
// PK: jti. ExpiresAt is a Unix timestamp used as DynamoDB TTL; once the token
// would have expired anyway, the row is garbage-collected. Backing this with
// the store instead of process memory keeps revocations effective across
// restarts and service instances.
type RevokedToken struct {
	JTI       string `json:"jti" dynamodbav:"jti"`
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}
