// Package mailer talks to the mail provider: SMTP for outbound
// replies and IMAP for polling the inbox.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"

	"github.com/lekki-homes/leadflow/internal/config"
	"github.com/lekki-homes/leadflow/internal/model"
)

// SMTPSender delivers outbound messages over SMTP.
// Conversations are threaded with Message-ID, In-Reply-To, and
// References headers; the thread id is the bare id of the first
// message in the conversation.
type SMTPSender struct {
	cfg   config.MailConfig
	newID func() string

	dial func(m ...*gomail.Message) error
}

// NewSMTPSender creates a sender from mail config.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}

	return &SMTPSender{
		cfg:   cfg,
		newID: uuid.NewString,
		dial:  dialer.DialAndSend,
	}
}

// SendReply sends one message. An empty ThreadID starts a new
// conversation; the receipt carries the thread id the caller should
// store against the lead.
func (s *SMTPSender) SendReply(ctx context.Context, msg model.OutboundMessage) (model.SendReceipt, error) {
	if err := ctx.Err(); err != nil {
		return model.SendReceipt{}, eris.Wrap(err, "mailer: send cancelled")
	}

	domain := s.cfg.ThreadDomain
	if domain == "" {
		domain = s.cfg.SMTPHost
	}

	messageID := s.newID() + "@" + domain
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = messageID
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.FromAddress, s.cfg.FromName))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", angleBracket(messageID))
	if msg.ThreadID != "" {
		m.SetHeader("In-Reply-To", angleBracket(msg.ThreadID))
		m.SetHeader("References", angleBracket(msg.ThreadID))
	}
	m.SetDateHeader("Date", time.Now().UTC())
	m.SetBody("text/plain", msg.Body)

	if err := s.dial(m); err != nil {
		return model.SendReceipt{}, eris.Wrap(err, "mailer: smtp send")
	}

	return model.SendReceipt{
		MessageID: messageID,
		ThreadID:  threadID,
	}, nil
}

func angleBracket(id string) string {
	return fmt.Sprintf("<%s>", id)
}
