package email

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/medicure-api/internal/config"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Name string
	Data []byte
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Service interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPService delivers mail through a single SMTP relay.
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *SMTPService) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// LogService only records that a message would have been sent. Used when no
// SMTP host is configured.
type LogService struct {
	logger zerolog.Logger
}

func NewLogService(logger zerolog.Logger) *LogService {
	return &LogService{logger: logger}
}

func (s *LogService) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments)).
		Msg("email delivery disabled, message dropped")
	return nil
}

// New picks the SMTP sender when a host is configured.
func New(cfg config.SMTPConfig, logger zerolog.Logger) Service {
	if cfg.Host == "" {
		return NewLogService(logger)
	}
	return NewSMTPService(cfg)
}
