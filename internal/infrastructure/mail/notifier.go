package mail

import (
	"fmt"
	"time"

	"github.com/qubdrive/api/internal/config"
	"github.com/qubdrive/api/internal/domain"
	"gopkg.in/gomail.v2"
)

// Notifier sends transactional email. All sends are best-effort from the
// flows' perspective; callers decide whether a failure is fatal.
type Notifier interface {
	SendOtp(to, code string, purpose domain.OtpPurpose, expiresAt time.Time) error
	SendWelcome(to, firstName string) error
	SendSecurityAlert(to, subject, body string) error
}

type notifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewNotifier(cfg *config.Config) Notifier {
	return &notifier{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

func (n *notifier) SendOtp(to, code string, purpose domain.OtpPurpose, expiresAt time.Time) error {
	subject := "Your Qub Drive verification code"
	if purpose == domain.PurposePasswordReset {
		subject = "Your Qub Drive password reset code"
	}
	minutes := int(time.Until(expiresAt).Minutes())
	body := fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires in %d minutes. If you did not request this code, you can ignore this email.",
		code, minutes,
	)
	return n.send(to, subject, body)
}

func (n *notifier) SendWelcome(to, firstName string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour Qub Drive account is ready. You can now upload and share files from any device.",
		firstName,
	)
	return n.send(to, "Welcome to Qub Drive", body)
}

func (n *notifier) SendSecurityAlert(to, subject, body string) error {
	return n.send(to, subject, body)
}

func (n *notifier) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return n.dialer.DialAndSend(m)
}
