package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// emailNotifier sends alerts as plain-text mail over SMTP.
type emailNotifier struct {
	addr       string
	host       string
	user       string
	password   string
	recipients []string
	logger     *slog.Logger

	// send is swapped out in tests; production uses smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newEmailNotifier(cfg Config, logger *slog.Logger) *emailNotifier {
	return &emailNotifier{
		addr:       net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(cfg.SMTPPort)),
		host:       cfg.SMTPServer,
		user:       cfg.SMTPUser,
		password:   cfg.SMTPPassword,
		recipients: cfg.Recipients,
		logger:     logger,
		send:       smtp.SendMail,
	}
}

func (n *emailNotifier) configured() bool {
	return n.host != "" && n.user != "" && n.password != "" && len(n.recipients) > 0
}

func (n *emailNotifier) Notify(ctx context.Context, subject, body string) error {
	if !n.configured() {
		return fmt.Errorf("smtp alert channel is not fully configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.user,
		"To: " + strings.Join(n.recipients, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	auth := smtp.PlainAuth("", n.user, n.password, n.host)
	if err := n.send(n.addr, auth, n.user, n.recipients, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	n.logger.Info("alert email sent",
		"subject", subject,
		"recipients", len(n.recipients))
	return nil
}

// localNotifier is the default channel: email when SMTP is fully
// configured, otherwise a structured-log fallback that always succeeds.
type localNotifier struct {
	email  *emailNotifier
	logger *slog.Logger
}

func newLocalNotifier(cfg Config, logger *slog.Logger) *localNotifier {
	return &localNotifier{
		email:  newEmailNotifier(cfg, logger),
		logger: logger,
	}
}

func (n *localNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.email.configured() {
		return n.email.Notify(ctx, subject, body)
	}
	n.logger.Warn("ALERT",
		"subject", subject,
		"body", body)
	return nil
}
