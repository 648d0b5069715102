// Package mail delivers verification tokens over an SMTP relay.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/verify"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

// SMTPMailer implements verify.TokenMailer over a plain SMTP relay.
type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	logger *slog.Logger
}

var _ verify.TokenMailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds the mailer from verification configuration.
func NewSMTPMailer(cfg config.VerifyConfig, logger *slog.Logger) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth:   auth,
		from:   cfg.FromAddress,
		logger: logger.With("component", "smtp_mailer"),
	}
}

// SendToken mails the verification token to the address being verified.
// net/smtp.SendMail has no context hook; the context is checked up front and
// the relay's own timeouts bound the rest.
func (m *SMTPMailer) SendToken(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + email,
		"Subject: Your verification token",
		"",
		"Your verification token:",
		"",
		token,
		"",
		"Redeem it with /verify in the community server.",
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{email}, []byte(msg)); err != nil {
		return shared.WrapError("mail", "SendToken", shared.ErrSideEffectFailed,
			"smtp delivery failed", err)
	}
	m.logger.Info("verification token mailed")
	return nil
}
