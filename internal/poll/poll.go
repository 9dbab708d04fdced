// Package poll ingests inbound email replies: it matches each message to
// a lead, re-scores the lead from its reply, derives the next pipeline
// status, and queues an AI reply draft for agent approval.
package poll

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/scoring"
	"github.com/lekki-homes/leadflow/internal/store"
)

// Fetcher retrieves inbound messages newer than the given cursor.
// A nil cursor means fetch everything available.
type Fetcher interface {
	FetchInbound(ctx context.Context, after *time.Time) ([]model.InboundMessage, error)
}

// DraftGenerator produces a reply draft from a prompt.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, prompt string) (string, error)
}

// Result is the poll batch's observable contract. The counters are exact:
// every fetched message lands in exactly one of processed, duplicates,
// unmatched, threadConflicts, or emptyIgnored.
type Result struct {
	Fetched               int `json:"fetched"`
	Processed             int `json:"processed"`
	Duplicates            int `json:"duplicates"`
	Unmatched             int `json:"unmatched"`
	ThreadConflicts       int `json:"threadConflicts"`
	EmptyIgnored          int `json:"emptyIgnored"`
	DraftsPendingApproval int `json:"draftsPendingApproval"`
	DraftsNeedsReview     int `json:"draftsNeedsReview"`
}

// CycleResult wraps one cursor-driven poll invocation.
type CycleResult struct {
	AfterCursor     *time.Time `json:"after_cursor,omitempty"`
	PollCompletedAt time.Time  `json:"poll_completed_at"`
	Summary         Result     `json:"summary"`
}

type Pipeline struct {
	store   store.Store
	fetcher Fetcher
	drafts  DraftGenerator

	now   func() time.Time
	newID func() string
}

func NewPipeline(s store.Store, fetcher Fetcher, drafts DraftGenerator) *Pipeline {
	return &Pipeline{
		store:   s,
		fetcher: fetcher,
		drafts:  drafts,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Process fetches and handles all inbound messages after the cursor.
// Messages run strictly oldest-first and sequentially: the reply count
// feeding the interaction score must reflect only already-processed
// messages. Per-message failures are counted, never fatal to the batch.
func (p *Pipeline) Process(ctx context.Context, after *time.Time) (Result, error) {
	var res Result

	messages, err := p.fetcher.FetchInbound(ctx, after)
	if err != nil {
		return res, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	res.Fetched = len(messages)

	for _, msg := range messages {
		if err := p.handleMessage(ctx, msg, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (p *Pipeline) handleMessage(ctx context.Context, msg model.InboundMessage, res *Result) error {
	duplicate, err := p.store.FindEmailByMessageID(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	if duplicate != nil {
		res.Duplicates++
		return nil
	}

	lead, err := p.store.FindLeadByEmail(ctx, strings.ToLower(msg.FromEmail))
	if err != nil {
		return err
	}
	if lead == nil {
		res.Unmatched++
		store.SafeLog(ctx, p.store, model.LogWarn, model.LogUnmatched, map[string]any{
			"messageId": msg.MessageID,
			"threadId":  msg.ThreadID,
			"fromEmail": msg.FromEmail,
		})
		return nil
	}

	// In-Reply-To references the message the buyer answered, which
	// after the first approved send is no longer the thread root.
	// Resolve it through the stored record to the conversation id.
	threadID := msg.ThreadID
	if ref, err := p.store.FindEmailByMessageID(ctx, threadID); err != nil {
		return err
	} else if ref != nil && ref.ThreadID != "" {
		threadID = ref.ThreadID
	}

	cleaned := CleanInboundBody(msg.Body)
	receivedAt := msg.ReceivedAt
	if cleaned == "" {
		res.EmptyIgnored++
		store.SafeLog(ctx, p.store, model.LogInfo, model.LogEmptyIgnored, map[string]any{
			"leadId":    lead.ID,
			"messageId": msg.MessageID,
		})
		return p.store.CreateEmail(ctx, &model.EmailRecord{
			ID:                p.newID(),
			LeadID:            lead.ID,
			ProviderMessageID: msg.MessageID,
			ThreadID:          threadID,
			Direction:         model.DirectionInbound,
			Subject:           msg.Subject,
			Body:              "",
			SentAt:            &receivedAt,
		})
	}

	err = p.store.CreateEmail(ctx, &model.EmailRecord{
		ID:                p.newID(),
		LeadID:            lead.ID,
		ProviderMessageID: msg.MessageID,
		ThreadID:          threadID,
		Direction:         model.DirectionInbound,
		Subject:           msg.Subject,
		Body:              cleaned,
		SentAt:            &receivedAt,
	})
	if err != nil {
		return err
	}

	// The inbound record is persisted either way; a conflicting thread
	// stops here so the lead is never re-scored from a stray conversation.
	if lead.ThreadID == "" || lead.ThreadID != threadID {
		res.ThreadConflicts++
		store.SafeLog(ctx, p.store, model.LogWarn, model.LogThreadConflict, map[string]any{
			"leadId":           lead.ID,
			"messageId":        msg.MessageID,
			"expectedThreadId": lead.ThreadID,
			"actualThreadId":   threadID,
		})
		return nil
	}

	replies, err := p.store.CountInboundInThread(ctx, lead.ID, threadID)
	if err != nil {
		return err
	}
	interactionScore := scoring.InteractionScore(scoring.InteractionInput{
		LastEmailSentAt:    lead.LastEmailSentAt,
		ReplyReceivedAt:    &receivedAt,
		MessageBody:        cleaned,
		ReplyCountInThread: replies,
	})
	totalScore := scoring.TotalScore(lead.FormScore, interactionScore)
	tier := scoring.TierFor(totalScore)
	status := DeriveStatus(cleaned, lead.PipelineStatus)

	err = p.store.UpdateLead(ctx, lead.ID, model.LeadPatch{
		InteractionScore: &interactionScore,
		TotalScore:       &totalScore,
		Tier:             &tier,
		PipelineStatus:   &status,
	})
	if err != nil {
		return err
	}

	draftStatus := model.DraftPendingApproval
	draftBody, err := p.drafts.GenerateDraft(ctx, BuildDraftPrompt(DraftPromptInput{
		LeadName:     lead.FullName,
		LeadTier:     tier,
		LeadStatus:   status,
		BuyerMessage: cleaned,
	}))
	if err != nil {
		draftStatus = model.DraftNeedsReview
		draftBody = FallbackDraft(err.Error())
	}

	subject := "Re: Property inquiry"
	if msg.Subject != "" {
		subject = "Re: " + msg.Subject
	}
	err = p.store.CreateEmail(ctx, &model.EmailRecord{
		ID:          p.newID(),
		LeadID:      lead.ID,
		ThreadID:    threadID,
		Direction:   model.DirectionDraft,
		Subject:     subject,
		Body:        draftBody,
		DraftStatus: draftStatus,
	})
	if err != nil {
		return err
	}

	res.Processed++
	switch draftStatus {
	case model.DraftPendingApproval:
		res.DraftsPendingApproval++
	case model.DraftNeedsReview:
		res.DraftsNeedsReview++
	}

	store.SafeLog(ctx, p.store, model.LogInfo, model.LogInboundProcessed, map[string]any{
		"leadId":           lead.ID,
		"messageId":        msg.MessageID,
		"interactionScore": interactionScore,
		"totalScore":       totalScore,
		"tier":             string(tier),
		"pipelineStatus":   string(status),
		"processedAt":      p.now().UTC().Format(time.RFC3339),
	})
	return nil
}

// RunCycle resumes from the last completed poll's cursor, processes the
// batch, and records a completion log carrying the next cursor.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	after, err := p.cursor(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	summary, err := p.Process(ctx, after)
	if err != nil {
		return CycleResult{}, err
	}

	completedAt := p.now().UTC()
	store.SafeLog(ctx, p.store, model.LogInfo, model.LogPollCompleted, map[string]any{
		"fetched":               summary.Fetched,
		"processed":             summary.Processed,
		"duplicates":            summary.Duplicates,
		"unmatched":             summary.Unmatched,
		"threadConflicts":       summary.ThreadConflicts,
		"emptyIgnored":          summary.EmptyIgnored,
		"draftsPendingApproval": summary.DraftsPendingApproval,
		"draftsNeedsReview":     summary.DraftsNeedsReview,
		"pollCompletedAt":       completedAt.Format(time.RFC3339),
	})

	return CycleResult{
		AfterCursor:     after,
		PollCompletedAt: completedAt,
		Summary:         summary,
	}, nil
}

func (p *Pipeline) cursor(ctx context.Context) (*time.Time, error) {
	last, err := p.store.LatestLogByMessage(ctx, model.LogPollCompleted)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	if raw, ok := last.Metadata["pollCompletedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t, nil
		}
	}
	created := last.CreatedAt
	return &created, nil
}
