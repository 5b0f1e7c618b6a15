package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Registration step mirror kept on the user record for backward compatibility
// with the legacy 3-step onboarding path.
const (
	UserStepDetailsPending = "details_pending"
	UserStepCompleted      = "completed"
)

type User struct {
	UserID           string     `json:"id" dynamodbav:"user_id"`
	Email            string     `json:"email" dynamodbav:"email"`
	PasswordHash     string     `json:"-" dynamodbav:"password_hash"`
	FirstName        string     `json:"first_name" dynamodbav:"first_name"`
	LastName         string     `json:"last_name" dynamodbav:"last_name"`
	Phone            *string    `json:"phone,omitempty" dynamodbav:"phone"`
	Role             string     `json:"role" dynamodbav:"role"`
	Permissions      []string   `json:"permissions,omitempty" dynamodbav:"permissions"`
	Verified         bool       `json:"verified" dynamodbav:"verified"`
	Enable           bool       `json:"enable" dynamodbav:"enable"`
	RegistrationStep string     `json:"registration_step" dynamodbav:"registration_step"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty" dynamodbav:"last_login_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time  `json:"updated" dynamodbav:"updated_at"`
}
