// Package mailer sends email through a caller-supplied SMTP server.
//
// Settings are passed per call because every CyberKey user can configure
// their own outgoing server. With Secure set the connection is TLS from the
// first byte (port 465 style); otherwise the client upgrades with STARTTLS
// when the server offers it.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSettings = errors.New("smtp settings are incomplete")
	ErrInvalidMessage  = errors.New("email message is incomplete")
)

const defaultDialTimeout = 15 * time.Second

var headerValueReplacer = strings.NewReplacer("\r", "", "\n", "")

// SMTPSettings describes an outgoing mail server.
type SMTPSettings struct {
	Host      string
	Port      int
	Secure    bool
	Username  string
	Password  string
	FromEmail string

	// FromName is the optional display name in the From header.
	FromName string
}

func (s SMTPSettings) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks that the settings can be used to send mail.
func (s SMTPSettings) Validate() error {
	switch {
	case s.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidSettings)
	case s.Port <= 0 || s.Port > 65535:
		return fmt.Errorf("%w: port %d is out of range", ErrInvalidSettings, s.Port)
	case s.FromEmail == "":
		return fmt.Errorf("%w: from address is required", ErrInvalidSettings)
	}
	return nil
}

// Message is a single email. At least one of HTML or Text must be set.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func (m Message) validate() error {
	switch {
	case m.To == "":
		return fmt.Errorf("%w: recipient email address cannot be empty", ErrInvalidMessage)
	case m.Subject == "":
		return fmt.Errorf("%w: email subject cannot be empty", ErrInvalidMessage)
	case m.HTML == "" && m.Text == "":
		return fmt.Errorf("%w: email body cannot be empty", ErrInvalidMessage)
	}
	return nil
}

// SMTPSender delivers messages over SMTP.
type SMTPSender struct {
	dialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewSMTPSender creates a sender. A zero timeout uses the default of 15s.
func NewSMTPSender(dialTimeout time.Duration) *SMTPSender {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &SMTPSender{dialContext: dialer.DialContext}
}

func tlsFor(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

// Send delivers msg. Every transport error is returned to the caller.
func (s *SMTPSender) Send(ctx context.Context, settings SMTPSettings, msg Message) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := msg.validate(); err != nil {
		return err
	}

	from := (&mail.Address{Name: settings.FromName, Address: settings.FromEmail}).String()
	body, err := buildMessage(from, msg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	conn, err := s.dial(ctx, settings)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", settings.addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, settings.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if !settings.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsFor(settings.Host)); err != nil {
				return fmt.Errorf("failed to upgrade SMTP connection with STARTTLS: %w", err)
			}
		}
	}

	// PlainAuth refuses to send credentials over a plaintext connection to
	// anything but localhost.
	if settings.Username != "" {
		auth := smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(settings.FromEmail); err != nil {
		return fmt.Errorf("SMTP MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("SMTP RCPT TO rejected: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA rejected: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, settings SMTPSettings) (net.Conn, error) {
	conn, err := s.dialContext(ctx, "tcp", settings.addr())
	if err != nil || !settings.Secure {
		return conn, err
	}
	tlsConn := tls.Client(conn, tlsFor(settings.Host))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// buildMessage renders msg as RFC 5322 text. When both bodies are present
// the result is multipart/alternative with the plain part first.
func buildMessage(from string, msg Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, headerValueReplacer.Replace(v))
	}

	header("From", from)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if msg.HTML == "" || msg.Text == "" {
		contentType, body := "text/plain; charset=UTF-8", msg.Text
		if msg.HTML != "" {
			contentType, body = "text/html; charset=UTF-8", msg.HTML
		}
		header("Content-Type", contentType)
		buf.WriteString("\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	for _, p := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}
