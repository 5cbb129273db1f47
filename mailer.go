package accounts

import (
	"context"
	"fmt"
	"net/smtp"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jordan-wright/email"
)

// SMTPConfig carries the connection options for the SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address. Defaults to Username when empty.
	From string
	// BaseURL is the public address links are built against,
	// e.g. https://app.example.com
	BaseURL string
}

// SMTPNotifier delivers activation and reset codes over SMTP. Sends are
// synchronous, callers dispatch them off the request path.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger Logger
}

// NewSMTPNotifier creates a notifier that delivers through the given server.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{
		cfg:    cfg,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the notifier.
func (n *SMTPNotifier) WithLogger(logger Logger) *SMTPNotifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

func (n *SMTPNotifier) SendActivationEmail(ctx context.Context, account *Account, code string) error {
	body := activationEmailBody(n.cfg.BaseURL, account, code)
	return n.send(ctx, account.Email, "Activate your account", body)
}

func (n *SMTPNotifier) SendResetEmail(ctx context.Context, account *Account, code string) error {
	body := resetEmailBody(n.cfg.BaseURL, account, code)
	return n.send(ctx, account.Email, "Reset your password", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before send")
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)

	if err := e.Send(addr, auth); err != nil {
		n.logger.Error("smtp send to %s failed: %v", to, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp delivery failed")
	}

	return nil
}
