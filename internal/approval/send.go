// Package approval executes an agent's approval of a pending reply
// draft: a guarded state machine that sends the (possibly edited) body
// and flips the draft to Sent only when every consistency check holds.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/store"
)

// Sender delivers the approved reply on the lead's thread.
type Sender interface {
	SendReply(ctx context.Context, msg model.OutboundMessage) (model.SendReceipt, error)
}

// Input is the agent's approval request. Body is the final text, which
// may differ from the stored draft after agent edits.
type Input struct {
	DraftID        string            `json:"draft_id"`
	ExpectedStatus model.DraftStatus `json:"expected_status"`
	Body           string            `json:"body"`
	ThreadID       string            `json:"thread_id"`
}

// Output reports a completed send.
type Output struct {
	DraftID       string    `json:"draft_id"`
	SentMessageID string    `json:"sent_message_id"`
	ThreadID      string    `json:"thread_id"`
	LeadID        string    `json:"lead_id"`
	SentAt        time.Time `json:"sent_at"`
}

// DraftNotFoundError reports a missing draft record.
type DraftNotFoundError struct {
	DraftID string
}

func (e *DraftNotFoundError) Error() string {
	return fmt.Sprintf("approval: draft %s not found", e.DraftID)
}

// LeadNotFoundError reports a draft whose owning lead is gone.
type LeadNotFoundError struct {
	LeadID string
}

func (e *LeadNotFoundError) Error() string {
	return fmt.Sprintf("approval: lead %s not found", e.LeadID)
}

// DraftStatusMismatchError guards against double-send races and
// non-draft records.
type DraftStatusMismatchError struct {
	Reason string
}

func (e *DraftStatusMismatchError) Error() string {
	return "approval: " + e.Reason
}

// ThreadMismatchError covers every conversation-identity failure: draft
// vs supplied thread, lead vs supplied thread, and the provider
// returning a different thread at send time.
type ThreadMismatchError struct {
	Reason string
}

func (e *ThreadMismatchError) Error() string {
	return "approval: " + e.Reason
}

type Machine struct {
	store  store.Store
	sender Sender

	now   func() time.Time
	newID func() string
}

func NewMachine(s store.Store, sender Sender) *Machine {
	return &Machine{
		store:  s,
		sender: sender,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Send validates and executes one draft approval. Guards run in a fixed
// order: asserted status, draft existence and direction, persisted
// status, draft thread, then lead thread; the asserted-status check runs
// before the draft is even loaded so ambiguous intent never touches the
// store. On success the outbound record, lead timestamp, and draft
// status are written in sequence; the steps are not transactional, so a
// crash mid-sequence can leave a sent message without the status flip.
func (m *Machine) Send(ctx context.Context, in Input) (Output, error) {
	if in.ExpectedStatus != model.DraftPendingApproval {
		return Output{}, &DraftStatusMismatchError{Reason: "only PendingApproval drafts can be sent"}
	}

	draft, err := m.store.GetEmail(ctx, in.DraftID)
	if err != nil {
		if store.ErrNotFound(err) {
			return Output{}, &DraftNotFoundError{DraftID: in.DraftID}
		}
		return Output{}, err
	}
	if draft.Direction != model.DirectionDraft {
		return Output{}, &DraftStatusMismatchError{Reason: "email record is not a draft"}
	}
	if draft.DraftStatus != in.ExpectedStatus {
		return Output{}, &DraftStatusMismatchError{
			Reason: fmt.Sprintf("draft status mismatch: expected %s, found %s", in.ExpectedStatus, draft.DraftStatus),
		}
	}
	if draft.ThreadID != in.ThreadID {
		return Output{}, &ThreadMismatchError{Reason: "draft thread does not match provided thread"}
	}

	lead, err := m.store.GetLead(ctx, draft.LeadID)
	if err != nil {
		if store.ErrNotFound(err) {
			return Output{}, &LeadNotFoundError{LeadID: draft.LeadID}
		}
		return Output{}, err
	}
	if lead.ThreadID == "" || lead.ThreadID != in.ThreadID {
		return Output{}, &ThreadMismatchError{Reason: "lead thread does not match provided thread"}
	}

	subject := draft.Subject
	if subject == "" {
		subject = "Re: Property inquiry"
	}
	receipt, err := m.sender.SendReply(ctx, model.OutboundMessage{
		To:       lead.Email,
		Subject:  subject,
		Body:     in.Body,
		ThreadID: in.ThreadID,
	})
	if err != nil {
		return Output{}, err
	}
	if receipt.ThreadID != in.ThreadID {
		store.SafeLog(ctx, m.store, model.LogWarn, model.LogThreadConflict, map[string]any{
			"draftId":          draft.ID,
			"leadId":           lead.ID,
			"expectedThreadId": in.ThreadID,
			"actualThreadId":   receipt.ThreadID,
		})
		return Output{}, &ThreadMismatchError{Reason: "provider returned a different thread id"}
	}

	sentAt := m.now().UTC()
	err = m.store.CreateEmail(ctx, &model.EmailRecord{
		ID:                m.newID(),
		LeadID:            lead.ID,
		ProviderMessageID: receipt.MessageID,
		ThreadID:          receipt.ThreadID,
		Direction:         model.DirectionOutbound,
		Subject:           draft.Subject,
		Body:              in.Body,
		SentAt:            &sentAt,
	})
	if err != nil {
		return Output{}, err
	}

	err = m.store.UpdateLead(ctx, lead.ID, model.LeadPatch{LastEmailSentAt: &sentAt})
	if err != nil {
		return Output{}, err
	}
	if err := m.store.UpdateDraftStatus(ctx, draft.ID, model.DraftSent, &sentAt); err != nil {
		return Output{}, err
	}

	store.SafeLog(ctx, m.store, model.LogInfo, model.LogOutboundSent, map[string]any{
		"draftId":   draft.ID,
		"leadId":    lead.ID,
		"messageId": receipt.MessageID,
		"threadId":  receipt.ThreadID,
	})

	return Output{
		DraftID:       draft.ID,
		SentMessageID: receipt.MessageID,
		ThreadID:      receipt.ThreadID,
		LeadID:        lead.ID,
		SentAt:        sentAt,
	}, nil
}
