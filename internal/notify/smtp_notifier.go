package notify

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"login-service/internal/config"
	"login-service/internal/util"

	"github.com/samber/oops"
	"go.uber.org/zap"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier emails the temporary password through an SMTP relay using
// STARTTLS when the server offers it.
type SMTPNotifier struct {
	addr   string
	from   string
	auth   smtp.Auth
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

func NewSMTPNotifier(cfg config.MailConfig, logger *zap.Logger) *SMTPNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return &SMTPNotifier{
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from:   from,
		auth:   auth,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

// Deliver blocks until the relay accepts the message. net/smtp has no context
// support, so ctx is only checked before dialing.
func (n *SMTPNotifier) Deliver(ctx context.Context, identity, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := renderResetEmail(n.from, identity, secret, n.now())
	if err != nil {
		return oops.Code("NOTIFY_FAILED").Wrapf(err, "failed to render reset email")
	}

	if err := n.send(n.addr, n.auth, n.from, []string{identity}, msg); err != nil {
		return oops.Code("NOTIFY_FAILED").With("relay", n.addr).Wrapf(err, "failed to send reset email")
	}

	n.logger.Info("Password reset email sent", util.Email("to", identity), util.String("relay", n.addr))
	return nil
}
