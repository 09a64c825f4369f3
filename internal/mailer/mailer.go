// Package mailer delivers rendered reports to care providers as MIME
// multipart email with the PDF attached.
package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/rs/zerolog/log"
)

// Config holds SMTP settings for outbound provider email.
type Config struct {
	Host     string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Mailer sends report emails over SMTP.
type Mailer struct {
	cfg Config
}

// New creates a mailer from the given SMTP configuration.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send builds a multipart message with a plain-text body and the attachment
// base64-encoded, then hands it to the SMTP server. Delivery failure is fatal
// for this attempt; there is no automatic retry.
func (m *Mailer) Send(to, subject, body string, attachment []byte, filename string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("smtp not configured")
	}
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid recipient address %q", to)
	}

	msg, err := BuildMessage(m.cfg.From, to, subject, body, attachment, filename)
	if err != nil {
		return fmt.Errorf("build email message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	log.Info().
		Str("smtp", addr).
		Str("to", to).
		Str("attachment", filename).
		Int("attachmentBytes", len(attachment)).
		Msg("Sending report email")

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// BuildMessage assembles the full RFC 2822 message: headers, a multipart/mixed
// body with a text part, and the attachment as base64 application/pdf.
func BuildMessage(from, to, subject, body string, attachment []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	// Keep the Content-Type header line within the RFC 5322 length limit.
	if err := mw.SetBoundary("glucolog-" + mw.Boundary()[:16]); err != nil {
		return nil, fmt.Errorf("set mime boundary: %w", err)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=\"UTF-8\"")
	textPart, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := textPart.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}

	attHeader := textproto.MIMEHeader{}
	attHeader.Set("Content-Type", "application/pdf")
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	attPart, err := mw.CreatePart(attHeader)
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if err := writeBase64Lines(attPart, attachment); err != nil {
		return nil, fmt.Errorf("write attachment part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64Lines encodes data as base64 wrapped at 76 characters per line.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := 76
		if n > len(encoded) {
			n = len(encoded)
		}
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
