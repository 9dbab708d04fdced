package model

import "time"

// EmailDirection classifies an EmailRecord.
type EmailDirection string

const (
	DirectionInbound  EmailDirection = "Inbound"
	DirectionOutbound EmailDirection = "Outbound"
	DirectionDraft    EmailDirection = "Draft"
)

// DraftStatus is meaningful only for records with direction Draft.
// PendingApproval and NeedsReview may transition to Sent; Sent is terminal.
type DraftStatus string

const (
	DraftPendingApproval DraftStatus = "PendingApproval"
	DraftSent            DraftStatus = "Sent"
	DraftNeedsReview     DraftStatus = "NeedsReview"
)

// EmailRecord is one message in a lead's conversation. Records are
// immutable once created except for draft status transitions.
type EmailRecord struct {
	ID                string         `json:"id"`
	LeadID            string         `json:"lead_id"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ThreadID          string         `json:"thread_id"`
	Direction         EmailDirection `json:"direction"`
	Subject           string         `json:"subject,omitempty"`
	Body              string         `json:"body"`
	DraftStatus       DraftStatus    `json:"draft_status,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// InboundMessage is a message fetched from the mail provider, not yet
// matched to a lead.
type InboundMessage struct {
	MessageID  string    `json:"message_id"`
	ThreadID   string    `json:"thread_id"`
	FromEmail  string    `json:"from_email"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is a message handed to the mail provider for sending.
// An empty ThreadID starts a new conversation.
type OutboundMessage struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	ThreadID string `json:"thread_id,omitempty"`
}

// SendReceipt is the provider's acknowledgment of a send. The returned
// ThreadID may legitimately differ from the requested one; callers must
// detect and handle the disagreement.
type SendReceipt struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}
