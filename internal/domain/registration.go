package domain

import "time"

// RegistrationStep is the state of a registration flow.
type RegistrationStep string

const (
	StepOtpPending     RegistrationStep = "otp_pending"
	StepDetailsPending RegistrationStep = "details_pending"
	StepCompleted      RegistrationStep = "completed"
)

// registrationTransitions is the forward-only transition table. Steps never
// move backwards and never skip; every advance is checked here centrally.
var registrationTransitions = map[RegistrationStep][]RegistrationStep{
	StepOtpPending:     {StepDetailsPending},
	StepDetailsPending: {StepCompleted},
	StepCompleted:      {},
}

// CanAdvance reports whether from → to is a legal step transition.
func (from RegistrationStep) CanAdvance(to RegistrationStep) bool {
	for _, next := range registrationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RegistrationFlow is a resumable registration in progress, one per email.
// PK: email (lowercased). TempData carries audit breadcrumbs (timestamps),
// not business state.
type RegistrationFlow struct {
	ID        string            `json:"id" dynamodbav:"id"`
	Email     string            `json:"email" dynamodbav:"email"`
	Step      RegistrationStep  `json:"step" dynamodbav:"step"`
	CreatedAt time.Time         `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time         `json:"expires_at" dynamodbav:"expires_at"`
	TempData  map[string]string `json:"temp_data,omitempty" dynamodbav:"temp_data"`
}

func (f *RegistrationFlow) IsExpired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}
