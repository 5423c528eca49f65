package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arflow/backend/internal/infrastructure/config"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	raw  string
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		Host:        "smtp.example.com",
		Port:        587,
		Username:    "mailer",
		Password:    "secret",
		FromName:    "ArFlow Billing",
		FromAddress: "billing@arflow.example.com",
		ReplyTo:     "support@arflow.example.com",
	}
}

func capturingSender(cfg config.MailConfig, captured *capturedMail) *SMTPSender {
	s := NewSMTPSender(cfg)
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.raw = string(msg)
		return nil
	}
	return s
}

func TestSMTPSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers plain text message", func(t *testing.T) {
		var captured capturedMail
		s := capturingSender(testMailConfig(), &captured)

		messageID, err := s.Send(ctx, &Message{
			To:      "jo@example.com",
			Subject: "Invoice INV-42 is overdue",
			Body:    "Hello Jo,\n\nyour invoice is 45 days overdue.",
		})
		require.NoError(t, err)

		assert.Equal(t, "smtp.example.com:587", captured.addr)
		assert.Equal(t, "billing@arflow.example.com", captured.from)
		assert.Equal(t, []string{"jo@example.com"}, captured.to)

		assert.True(t, strings.HasPrefix(messageID, "<"))
		assert.True(t, strings.HasSuffix(messageID, "@smtp.example.com>"))

		assert.Contains(t, captured.raw, "To: jo@example.com\r\n")
		assert.Contains(t, captured.raw, "Reply-To: support@arflow.example.com\r\n")
		assert.Contains(t, captured.raw, "Message-ID: "+messageID+"\r\n")
		assert.Contains(t, captured.raw, "Content-Type: text/plain")
		assert.Contains(t, captured.raw, "your invoice is 45 days overdue.")
		assert.NotContains(t, captured.raw, "multipart/mixed")
	})

	t.Run("attachment produces multipart message", func(t *testing.T) {
		var captured capturedMail
		s := capturingSender(testMailConfig(), &captured)

		pdf := []byte("%PDF-1.7 fake content")
		_, err := s.Send(ctx, &Message{
			To:             "jo@example.com",
			Subject:        "Invoice INV-42",
			Body:           "See attached.",
			AttachmentName: "invoice-INV-42.pdf",
			Attachment:     pdf,
		})
		require.NoError(t, err)

		assert.Contains(t, captured.raw, "Content-Type: multipart/mixed; boundary=")
		assert.Contains(t, captured.raw, "Content-Type: application/pdf")
		assert.Contains(t, captured.raw, `filename="invoice-INV-42.pdf"`)
		assert.Contains(t, captured.raw, base64.StdEncoding.EncodeToString(pdf))
	})

	t.Run("long attachments are folded at 76 columns", func(t *testing.T) {
		var captured capturedMail
		s := capturingSender(testMailConfig(), &captured)

		_, err := s.Send(ctx, &Message{
			To:             "jo@example.com",
			Subject:        "Invoice",
			Body:           "See attached.",
			AttachmentName: "invoice.pdf",
			Attachment:     make([]byte, 600),
		})
		require.NoError(t, err)

		start := strings.Index(captured.raw, "Content-Transfer-Encoding: base64")
		require.Greater(t, start, 0)
		payload := captured.raw[start:]
		for _, line := range strings.Split(payload, "\r\n") {
			assert.LessOrEqual(t, len(line), 76)
		}
	})

	t.Run("empty recipient is rejected", func(t *testing.T) {
		var captured capturedMail
		s := capturingSender(testMailConfig(), &captured)

		_, err := s.Send(ctx, &Message{Subject: "x", Body: "y"})
		assert.Error(t, err)
		assert.Empty(t, captured.raw)
	})

	t.Run("transport failure is wrapped with recipient", func(t *testing.T) {
		s := NewSMTPSender(testMailConfig())
		s.send = func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		}

		_, err := s.Send(ctx, &Message{To: "jo@example.com", Subject: "x", Body: "y"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jo@example.com")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("cancelled context does not attempt delivery", func(t *testing.T) {
		var captured capturedMail
		s := capturingSender(testMailConfig(), &captured)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Send(cancelled, &Message{To: "jo@example.com", Subject: "x", Body: "y"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, captured.raw)
	})

	t.Run("display name is encoded in the from header", func(t *testing.T) {
		var captured capturedMail
		cfg := testMailConfig()
		cfg.FromName = "Fakturace Nováková"
		s := capturingSender(cfg, &captured)

		_, err := s.Send(ctx, &Message{To: "jo@example.com", Subject: "x", Body: "y"})
		require.NoError(t, err)

		assert.Contains(t, captured.raw, "<billing@arflow.example.com>")
		assert.NotContains(t, captured.raw, "From: Fakturace Nováková")
	})
}
