// Package mailer sends the transactional e-mails of the API (welcome,
// password reset). The API enqueues them on RabbitMQ when a broker is
// configured; the worker drains the queue through SMTP.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("mail: header values must not contain line breaks")
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only logs; used when neither a broker nor SMTP is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("mail not delivered (no transport configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func Welcome(to, name, appURL string) Message {
	if name == "" {
		name = "there"
	}
	return Message{
		To:      to,
		Subject: "Welcome to BA Assist",
		Body: fmt.Sprintf("Hi %s,\n\nYour BA Assist account is ready. Sign in at %s to create your first project.\n\nThe BA Assist team\n",
			name, appURL),
	}
}

func PasswordReset(to, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your BA Assist password",
		Body: fmt.Sprintf("Someone asked to reset the password for this account.\n\nOpen %s within %s to choose a new password. If it was not you, ignore this e-mail.\n",
			link, ttl.Round(time.Minute)),
	}
}
