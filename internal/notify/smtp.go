package notify

import (
	"context"
	"errors"

	gomail "gopkg.in/gomail.v2"
)

// ErrNoRecipients — список получателей пуст, отправлять некому.
var ErrNoRecipients = errors.New("no mail recipients configured")

const (
	defaultSMTPHost = "localhost"
	defaultSMTPPort = 25
)

// SMTPConfig — настройки SMTP-диспетчера.
type SMTPConfig struct {
	// Host — адрес SMTP-сервера. По умолчанию localhost.
	Host string

	// Port — порт SMTP-сервера. По умолчанию 25.
	Port int

	// Username, Password — учётные данные. Пустые — без аутентификации.
	Username string
	Password string

	// From — адрес отправителя.
	From string

	// To — получатели уведомлений.
	To []string
}

// SMTP — диспетчер уведомлений по SMTP.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

// NewSMTP создаёт SMTP-диспетчер.
func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Host == "" {
		cfg.Host = defaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSMTPPort
	}

	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

// Send отправляет письмо всем получателям.
// gomail не умеет context, поэтому отмена проверяется только
// перед установкой соединения.
func (s *SMTP) Send(ctx context.Context, subject, body string) error {
	if len(s.to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return s.dialer.DialAndSend(m)
}
