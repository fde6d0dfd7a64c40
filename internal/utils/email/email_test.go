package email

import (
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mail *email.Email
	addr string
}

func newTestSender(cfg *config.Config, sendErr error) (*Sender, *[]captured) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewSender(cfg, log)
	var sent []captured
	s.send = func(e *email.Email, addr string, _ smtp.Auth) error {
		sent = append(sent, captured{mail: e, addr: addr})
		return sendErr
	}
	s.now = func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) }
	return s, &sent
}

var smtpConfig = &config.Config{
	SMTPHost:    "smtp.example.com",
	SMTPPort:    "587",
	SenderEmail: "sync@example.com",
}

func TestSendCredentialRejected(t *testing.T) {
	s, sent := newTestSender(smtpConfig, nil)

	err := s.SendCredentialRejected(models.User{Username: "alice", Email: "alice@example.com"}, 403)
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	got := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, []string{"alice@example.com"}, got.mail.To)
	assert.Equal(t, "sync@example.com", got.mail.From)
	assert.Equal(t, "Bank token rejected", got.mail.Subject)
	assert.Contains(t, string(got.mail.Text), "HTTP 403")
	assert.Contains(t, string(got.mail.Text), "2024-05-15")
}

func TestSendSkippedWithoutSMTP(t *testing.T) {
	s, sent := newTestSender(&config.Config{}, nil)

	require.NoError(t, s.SendCredentialRejected(models.User{Email: "a@example.com"}, 401))
	assert.Empty(t, *sent)
}

func TestSendSkippedWithoutRecipient(t *testing.T) {
	s, sent := newTestSender(smtpConfig, nil)

	require.NoError(t, s.SendCredentialRejected(models.User{Username: "noemail"}, 401))
	assert.Empty(t, *sent)
}

func TestSendError(t *testing.T) {
	s, _ := newTestSender(smtpConfig, errors.New("connection refused"))

	err := s.SendCredentialRejected(models.User{Email: "a@example.com"}, 401)
	assert.ErrorContains(t, err, "failed to send email")
}
