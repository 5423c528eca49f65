package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arflow/backend/internal/infrastructure/config"
)

// Message is one outbound notification. Attachment is optional; when present
// it is sent as a PDF part.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// Sender delivers notification messages and returns the message id it stamped
// on the delivery.
type Sender interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}

// SMTPSender delivers mail over authenticated SMTP.
type SMTPSender struct {
	cfg  config.MailConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP sender from the mail configuration
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		send: smtp.SendMail,
	}
}

// Send assembles the MIME message and delivers it. The generated Message-ID
// is returned so the caller can record it on the schedule row.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg.To == "" {
		return "", fmt.Errorf("mail: recipient is empty")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.cfg.Host)
	raw := s.assemble(msg, messageID)

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.send(addr, s.auth, s.cfg.FromAddress, []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("mail: failed to send to %s: %w", msg.To, err)
	}
	return messageID, nil
}

func (s *SMTPSender) assemble(msg *Message, messageID string) []byte {
	var b strings.Builder

	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.FromAddress)
	}

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	if s.cfg.ReplyTo != "" {
		b.WriteString("Reply-To: " + s.cfg.ReplyTo + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachment) == 0 {
		b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	boundary := "part-" + uuid.New().String()
	b.WriteString("Content-Type: multipart/mixed; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: application/pdf\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("Content-Disposition: attachment; filename=\"" + msg.AttachmentName + "\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(msg.Attachment)))
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}

// wrapBase64 folds base64 content at 76 characters per RFC 2045
func wrapBase64(s string) string {
	const lineLen = 76
	var b strings.Builder
	for len(s) > lineLen {
		b.WriteString(s[:lineLen])
		b.WriteString("\r\n")
		s = s[lineLen:]
	}
	b.WriteString(s)
	return b.String()
}
