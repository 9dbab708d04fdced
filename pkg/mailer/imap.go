package mailer

import (
	"context"
	"crypto/tls"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lekki-homes/leadflow/internal/config"
	"github.com/lekki-homes/leadflow/internal/model"
)

// IMAPFetcher pulls inbound messages from the mailbox. Each call opens
// a fresh connection; polling is infrequent enough that keeping a
// session alive is not worth the reconnect handling.
type IMAPFetcher struct {
	cfg config.MailConfig
}

// NewIMAPFetcher creates a fetcher from mail config.
func NewIMAPFetcher(cfg config.MailConfig) *IMAPFetcher {
	return &IMAPFetcher{cfg: cfg}
}

// FetchInbound returns messages received after the given cursor, or
// all unseen messages when the cursor is nil.
func (f *IMAPFetcher) FetchInbound(ctx context.Context, after *time.Time) ([]model.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "mailer: fetch cancelled")
	}

	host := f.cfg.IMAPAddr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	c, err := client.DialTLS(f.cfg.IMAPAddr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, eris.Wrap(err, "mailer: imap dial")
	}
	defer c.Logout() //nolint:errcheck

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, eris.Wrap(err, "mailer: imap login")
	}

	mailbox := f.cfg.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return nil, eris.Wrap(err, "mailer: imap select "+mailbox)
	}

	criteria := imap.NewSearchCriteria()
	if after != nil {
		// IMAP SINCE has whole-day granularity; receivedAt is
		// re-checked per message below.
		criteria.Since = after.UTC().Truncate(24 * time.Hour)
	} else {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}

	ids, err := c.Search(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "mailer: imap search")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var out []model.InboundMessage
	for msg := range messages {
		inbound, err := f.toInbound(msg, section)
		if err != nil {
			zap.L().Warn("mailer: skipping unparseable message",
				zap.Uint32("seq", msg.SeqNum),
				zap.Error(err),
			)
			continue
		}
		if after != nil && !inbound.ReceivedAt.After(*after) {
			continue
		}
		out = append(out, inbound)
	}

	if err := <-done; err != nil {
		return nil, eris.Wrap(err, "mailer: imap fetch")
	}

	return out, nil
}

func (f *IMAPFetcher) toInbound(msg *imap.Message, section *imap.BodySectionName) (model.InboundMessage, error) {
	if msg.Envelope == nil {
		return model.InboundMessage{}, eris.New("missing envelope")
	}

	var from string
	if len(msg.Envelope.From) > 0 {
		addr := msg.Envelope.From[0]
		from = addr.MailboxName + "@" + addr.HostName
	}
	if from == "" || from == "@" {
		return model.InboundMessage{}, eris.New("missing from address")
	}

	body, err := extractPlainText(msg.GetBody(section))
	if err != nil {
		return model.InboundMessage{}, err
	}

	messageID := stripAngleBrackets(msg.Envelope.MessageId)
	threadID := stripAngleBrackets(msg.Envelope.InReplyTo)
	if threadID == "" {
		threadID = messageID
	}

	return model.InboundMessage{
		MessageID:  messageID,
		ThreadID:   threadID,
		FromEmail:  from,
		Subject:    msg.Envelope.Subject,
		Body:       body,
		ReceivedAt: msg.Envelope.Date.UTC(),
	}, nil
}

// extractPlainText walks the MIME parts and returns the first
// text/plain inline body, falling back to text/html stripped of
// nothing (the cleaner downstream copes with markup remnants).
func extractPlainText(literal imap.Literal) (string, error) {
	if literal == nil {
		return "", eris.New("missing body section")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return "", eris.Wrap(err, "create reader")
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "next part")
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", eris.Wrap(err, "read part")
		}
		switch {
		case strings.Contains(contentType, "text/plain") && plain == "":
			plain = string(b)
		case strings.Contains(contentType, "text/html") && html == "":
			html = string(b)
		}
	}

	if plain != "" {
		return plain, nil
	}
	return html, nil
}

func stripAngleBrackets(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
}
