package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"forum/pkg/logger"
)

// Mailer sends outbound mail over plain SMTP. When the SMTP environment
// is not configured the mailer stays disabled and Send becomes a logged
// no-op, so local development works without a mail account.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	enabled  bool
}

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func New(cfg Config) *Mailer {
	enabled := cfg.Host != "" && cfg.Port != "" && cfg.Username != "" &&
		cfg.Password != "" && cfg.From != ""

	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		enabled:  enabled,
	}
}

func (m *Mailer) Enabled() bool {
	return m.enabled
}

// Send delivers one HTML mail in the background. Delivery failures are
// logged, not returned: callers like forgotPassword must not surface
// them to the client.
func (m *Mailer) Send(to, subject, htmlBody string) {
	log := logger.Log(context.Background())
	if !m.enabled {
		log.Infow("mailer disabled, dropping mail", "to", to, "subject", subject)
		return
	}

	go func() {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		addr := m.host + ":" + m.port

		mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
		msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n%s%s",
			to, m.from, subject, mime, htmlBody))

		if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
			log.Errorw("failed sending mail", "to", to, "error", err)
			return
		}
		log.Infow("mail sent", "to", to, "subject", subject)
	}()
}
