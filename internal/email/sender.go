package email

import (
	"crypto/tls"
	"fmt"

	"github.com/dropDatabas3/accountd/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// Sender es la interfaz para enviar emails.
type Sender interface {
	// Send envía un email con contenido HTML y texto plano
	// como multipart/alternative.
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender crea un nuevo SMTPSender con los parámetros dados.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

func (s *SMTPSender) message(to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// Preferimos multipart/alternative (txt + html)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}
	return m
}

// Send envía el mensaje. El destinatario no se loguea.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(
		logger.Component("SMTPSender"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
	)

	m := s.message(to, subject, htmlBody, textBody)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info("email sent", logger.String("subject", subject))
	return nil
}

// LogSender descarta el correo y deja constancia en el log. Sólo para dev.
type LogSender struct{}

func (LogSender) Send(to, subject, htmlBody, textBody string) error {
	logger.L().Info("email not sent (log mailer)",
		logger.Component("LogSender"),
		logger.String("subject", subject),
		logger.Int("text_len", len(textBody)),
	)
	return nil
}
