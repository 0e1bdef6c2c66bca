package mail

import (
	"context"
	"io"

	gomail "gopkg.in/gomail.v2"
)

// Config carries SMTP settings from the YAML config.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends report emails over SMTP. It is dependency-injected rather than
// a lazily-initialized process-wide transporter.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers an HTML body with an optional PDF attachment.
func (m *Mailer) Send(ctx context.Context, to, subject, body string, attachment []byte, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if len(attachment) > 0 {
		msg.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(attachment)
			return err
		}))
	}
	return m.dialer.DialAndSend(msg)
}
