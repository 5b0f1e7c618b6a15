package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter removes rows that expired before the cutoff and reports how
// many it deleted.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// Report counts the rows removed by one cleanup run.
type Report struct {
	OtpCodes           int `json:"otp_codes"`
	RegistrationFlows  int `json:"registration_flows"`
	PasswordResetFlows int `json:"password_reset_flows"`
}

// Service sweeps expired flow and code rows. DynamoDB TTL already garbage
// collects otp purge_at and revoked_tokens; this sweep covers the tables
// without a TTL attribute and tightens the window on the ones with.
type Service interface {
	CleanupExpired(ctx context.Context) (*Report, error)
}

type Deps struct {
	Otps          ExpiredDeleter
	Registrations ExpiredDeleter
	Resets        ExpiredDeleter
}

type service struct {
	otps          ExpiredDeleter
	registrations ExpiredDeleter
	resets        ExpiredDeleter
}

func NewService(deps Deps) Service {
	return &service{otps: deps.Otps, registrations: deps.Registrations, resets: deps.Resets}
}

// CleanupExpired runs all sweeps even when one fails, returning the partial
// report alongside the first error. Idempotent.
func (s *service) CleanupExpired(ctx context.Context) (*Report, error) {
	now := time.Now().UTC()
	report := &Report{}
	var firstErr error

	run := func(name string, d ExpiredDeleter, out *int) {
		n, err := d.DeleteExpired(ctx, now)
		if err != nil {
			slog.Warn("cleanup sweep failed", "table", name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		*out = n
	}

	run("otp_codes", s.otps, &report.OtpCodes)
	run("registration_flows", s.registrations, &report.RegistrationFlows)
	run("password_reset_flows", s.resets, &report.PasswordResetFlows)

	slog.Info("cleanup completed",
		"event", "cleanup",
		"otp_codes", report.OtpCodes,
		"registration_flows", report.RegistrationFlows,
		"password_reset_flows", report.PasswordResetFlows,
	)
	return report, firstErr
}
