// Package mailer adapts an SMTP service behind the dispatcher's
// MessageSender boundary. Every transport fault is converted into a
// returned error; nothing escapes the adapter.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	defaultHost = "smtp.gmail.com"
	defaultPort = 587
)

// ErrMissingCredentials indicates that the SMTP user or secret is not
// configured. It is detected before any network connection is attempted.
var ErrMissingCredentials = errors.New("mailer: missing smtp credentials")

// Config carries the SMTP endpoint and message addressing. From and To
// default to User when left empty; Port defaults to 587.
type Config struct {
	Host   string
	Port   int
	User   string
	Secret string
	From   string
	To     string
}

// Validate fails fast on missing credentials so a misconfigured deployment
// produces one clear diagnostic instead of a live connection failure.
func (c Config) Validate() error {
	if c.User == "" || c.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c Config) normalized() Config {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.From == "" {
		c.From = c.User
	}
	if c.To == "" {
		c.To = c.User
	}
	return c
}

// SMTPSender sends one message per call over an authenticated STARTTLS
// connection scoped to that call: dialed, used, and closed before Send
// returns.
type SMTPSender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSMTPSender validates the configuration and returns a sender. It never
// touches the network.
func NewSMTPSender(cfg Config, logger *zap.Logger) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg.normalized(), logger: logger}, nil
}

// Send delivers one plain-text message. The context bounds the whole
// dial-authenticate-send exchange.
func (s *SMTPSender) Send(ctx context.Context, subject, body string) error {
	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Secret),
	)
	if err != nil {
		return fmt.Errorf("mailer: client setup failed: %w", err)
	}

	message := mail.NewMsg()
	if err := message.From(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if err := message.To(s.cfg.To); err != nil {
		return fmt.Errorf("mailer: invalid to address: %w", err)
	}
	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body)

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("mailer: send failed: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", s.cfg.To), zap.String("subject", subject))
	return nil
}
