package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
	now    func() time.Time
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send:   (*email.Email).Send,
		now:    time.Now,
	}
}

// SendCredentialRejected tells a user that the bank refused their stored token
func (s *Sender) SendCredentialRejected(user models.User, status int) error {
	body := fmt.Sprintf("Dear %s,\n\n", user.Username)
	body += fmt.Sprintf(
		"Your bank rejected the stored API token (HTTP %d) on %s.\n"+
			"Statement synchronization is paused until a valid token is configured.\n",
		status, s.now().UTC().Format("2006-01-02 15:04:05 MST"),
	)
	body += "\nBest regards,\nBank Sync"
	return s.deliver(user.Email, "Bank token rejected", body)
}

func (s *Sender) deliver(to, subject, body string) error {
	if !s.cfg.SMTPEnabled() || to == "" {
		s.logger.Debugf("Skipping email %q: SMTP not configured or no recipient", subject)
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
