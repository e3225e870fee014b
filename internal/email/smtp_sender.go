package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/textproto"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/leave-approval/internal/application/port"
	"github.com/garyjia/leave-approval/internal/domain/entity"
)

// ErrSMTPNotConfigured is returned when no SMTP host is set
var ErrSMTPNotConfigured = errors.New("smtp sender is not configured")

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	TLSEnabled bool
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPSender delivers messages through an SMTP relay
type SMTPSender struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   sendFunc
	clock  func() time.Time
}

// NewSMTPSender creates an SMTP sender; implicit TLS is used when cfg.TLSEnabled
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	send := smtp.SendMail
	if cfg.TLSEnabled {
		send = smtp.SendMailTLS
	}
	return &SMTPSender{
		cfg:    cfg,
		logger: logger,
		send:   send,
		clock:  time.Now,
	}
}

// Channel implements port.NotificationSender
func (s *SMTPSender) Channel() string {
	return "smtp"
}

// Deliver implements port.NotificationSender
func (s *SMTPSender) Deliver(ctx context.Context, msg *port.Message) (*entity.DeliveryResult, error) {
	if s.cfg.Host == "" {
		s.logger.Warn("Email not sent, smtp host is not configured",
			zap.String("to", msg.To),
			zap.String("kind", msg.Kind.String()))
		return nil, ErrSMTPNotConfigured
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	body, err := buildMIME(msg, from, s.cfg.FromName, messageID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	// go-smtp's SendMail has no context; the caller's deadline is enforced here
	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, from, []string{msg.To}, bytes.NewReader(body))
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", msg.To),
			zap.String("kind", msg.Kind.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Email sent",
		zap.String("to", msg.To),
		zap.String("kind", msg.Kind.String()),
		zap.String("message_id", messageID))

	return &entity.DeliveryResult{
		Success:   true,
		Recipient: msg.To,
		MessageID: messageID,
		Channel:   s.Channel(),
	}, nil
}

// buildMIME writes a multipart/alternative message with text and html parts
func buildMIME(msg *port.Message, from, fromName, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	sender := from
	if fromName != "" {
		sender = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), from)
	}

	headers := []struct{ key, value string }{
		{"From", sender},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ port.NotificationSender = (*SMTPSender)(nil)
