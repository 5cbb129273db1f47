package accounts

import (
	"context"
	"fmt"
	"strings"
)

// logNotifier is the default Notifier. It writes the delivery that would
// have happened to the logger, which is what you want in development and
// in tests. Production wires an SMTPNotifier or a custom implementation.
type logNotifier struct {
	logger Logger
}

// NewLogNotifier returns a Notifier that logs instead of delivering.
func NewLogNotifier(logger Logger) Notifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) SendActivationEmail(ctx context.Context, account *Account, code string) error {
	n.logger.Info(
		"activation notification to=%s account=%s link=/auth/activate/%s/%s",
		account.Email,
		account.ID,
		account.ID,
		code,
	)
	return nil
}

func (n *logNotifier) SendResetEmail(ctx context.Context, account *Account, code string) error {
	n.logger.Info(
		"password reset notification to=%s account=%s link=/auth/password-reset/%s/%s",
		account.Email,
		account.ID,
		account.ID,
		code,
	)
	return nil
}

// activationEmailBody renders the plain text body shared by the SMTP and
// log notifiers.
func activationEmailBody(baseURL string, account *Account, code string) string {
	var b strings.Builder
	name := account.FullName()
	if name == "" {
		name = account.Email
	}
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	b.WriteString("Your account has been created and needs to be activated before you can sign in.\r\n\r\n")
	fmt.Fprintf(&b, "Activate it here: %s/auth/activate/%s/%s\r\n", strings.TrimRight(baseURL, "/"), account.ID, code)
	return b.String()
}

func resetEmailBody(baseURL string, account *Account, code string) string {
	var b strings.Builder
	name := account.FullName()
	if name == "" {
		name = account.Email
	}
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	b.WriteString("We received a request to reset the password for your account.\r\n")
	b.WriteString("If you did not make this request you can ignore this message.\r\n\r\n")
	fmt.Fprintf(&b, "Reset your password here: %s/auth/password-reset/%s/%s\r\n", strings.TrimRight(baseURL, "/"), account.ID, code)
	fmt.Fprintf(&b, "\r\nThe link is valid for %s and can be used once.\r\n", ResetTTLPeriod)
	return b.String()
}
