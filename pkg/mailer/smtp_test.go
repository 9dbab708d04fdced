package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/lekki-homes/leadflow/internal/config"
	"github.com/lekki-homes/leadflow/internal/model"
)

func testSender(dial func(m ...*gomail.Message) error) *SMTPSender {
	s := NewSMTPSender(config.MailConfig{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		Username:     "agent@lekkihomes.ng",
		Password:     "secret",
		FromAddress:  "agent@lekkihomes.ng",
		FromName:     "Lekki Homes",
		ThreadDomain: "lekkihomes.ng",
	})
	s.newID = func() string { return "fixed-id" }
	s.dial = dial
	return s
}

func TestSMTPSender_SendReply_NewThread(t *testing.T) {
	var sent *gomail.Message
	s := testSender(func(m ...*gomail.Message) error {
		require.Len(t, m, 1)
		sent = m[0]
		return nil
	})

	receipt, err := s.SendReply(context.Background(), model.OutboundMessage{
		To:      "lead@example.com",
		Subject: "Curated Property Options for You",
		Body:    "Hello,",
	})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id@lekkihomes.ng", receipt.MessageID)
	// First message in a conversation defines the thread.
	assert.Equal(t, receipt.MessageID, receipt.ThreadID)

	require.NotNil(t, sent)
	assert.Equal(t, []string{"<fixed-id@lekkihomes.ng>"}, sent.GetHeader("Message-ID"))
	assert.Empty(t, sent.GetHeader("In-Reply-To"))
	assert.Equal(t, []string{"lead@example.com"}, sent.GetHeader("To"))
}

func TestSMTPSender_SendReply_ExistingThread(t *testing.T) {
	var sent *gomail.Message
	s := testSender(func(m ...*gomail.Message) error {
		sent = m[0]
		return nil
	})

	receipt, err := s.SendReply(context.Background(), model.OutboundMessage{
		To:       "lead@example.com",
		Subject:  "Re: Property inquiry",
		Body:     "Following up,",
		ThreadID: "thread-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "thread-1", receipt.ThreadID)
	assert.Equal(t, "fixed-id@lekkihomes.ng", receipt.MessageID)
	assert.Equal(t, []string{"<thread-1>"}, sent.GetHeader("In-Reply-To"))
	assert.Equal(t, []string{"<thread-1>"}, sent.GetHeader("References"))
}

func TestSMTPSender_SendReply_DialError(t *testing.T) {
	s := testSender(func(_ ...*gomail.Message) error {
		return errors.New("connection refused")
	})

	_, err := s.SendReply(context.Background(), model.OutboundMessage{To: "lead@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp send")
}

func TestSMTPSender_SendReply_CancelledContext(t *testing.T) {
	called := false
	s := testSender(func(_ ...*gomail.Message) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SendReply(ctx, model.OutboundMessage{To: "lead@example.com"})
	require.Error(t, err)
	assert.False(t, called)
}

func TestStripAngleBrackets(t *testing.T) {
	assert.Equal(t, "abc@example.com", stripAngleBrackets("<abc@example.com>"))
	assert.Equal(t, "abc@example.com", stripAngleBrackets("abc@example.com"))
	assert.Empty(t, stripAngleBrackets(""))
}
