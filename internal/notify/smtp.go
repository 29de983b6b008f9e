package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/JonMunkholm/recimport/internal/core"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig configures an SMTP notifier.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FallbackTo string
	Send       SendFunc // nil uses smtp.SendMail
	Now        func() time.Time
}

// SMTP mails reports to file authors.
type SMTP struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

// NewSMTP creates an SMTP notifier.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: SMTP host is required")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("notify: invalid from address %q: %w", cfg.From, err)
	}
	if cfg.Send == nil {
		cfg.Send = smtp.SendMail
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &SMTP{cfg: cfg}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// NotifyRejected implements core.Notifier.
func (s *SMTP) NotifyRejected(ctx context.Context, r core.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := s.recipient(r.Author)
	if err != nil {
		return err
	}
	msg, err := s.message(to, r)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.cfg.Send(addr, s.auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send report for %s: %w", r.FileName, err)
	}
	return nil
}

func (s *SMTP) recipient(author string) (string, error) {
	if a, err := mail.ParseAddress(author); err == nil {
		return a.Address, nil
	}
	if s.cfg.FallbackTo != "" {
		return s.cfg.FallbackTo, nil
	}
	return "", fmt.Errorf("no recipient for author %q", author)
}

// message builds a multipart/alternative mail with text and HTML parts.
func (s *SMTP) message(to string, r core.Report) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if err := RenderText(text, r); err != nil {
		return nil, fmt.Errorf("render text report: %w", err)
	}

	html, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if err := ReportPage(r).Render(context.Background(), html); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(r)))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.cfg.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
