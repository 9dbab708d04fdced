// Package intake processes lead-capture webhook submissions: validation,
// idempotency, duplicate rejection, form scoring, lead creation, and the
// first outreach email.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekki-homes/leadflow/internal/dedup"
	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/resilience"
	"github.com/lekki-homes/leadflow/internal/scoring"
	"github.com/lekki-homes/leadflow/internal/store"
)

// Sender delivers the initial outreach email.
type Sender interface {
	SendReply(ctx context.Context, msg model.OutboundMessage) (model.SendReceipt, error)
}

// Result is the webhook pipeline's observable outcome. When Idempotent
// is true the submission was a replay and nothing else is populated.
type Result struct {
	Idempotent       bool       `json:"idempotent"`
	LeadID           string     `json:"lead_id,omitempty"`
	MessageID        string     `json:"message_id,omitempty"`
	ThreadID         string     `json:"thread_id,omitempty"`
	FormScore        float64    `json:"form_score"`
	InteractionScore float64    `json:"interaction_score"`
	TotalScore       float64    `json:"total_score"`
	Tier             model.Tier `json:"tier,omitempty"`
}

// Pipeline wires the intake dependencies together.
type Pipeline struct {
	store   store.Store
	sender  Sender
	dedup   dedup.Store
	scoring scoring.Config

	now   func() time.Time
	newID func() string
}

func NewPipeline(s store.Store, sender Sender, d dedup.Store, cfg scoring.Config) *Pipeline {
	return &Pipeline{
		store:   s,
		sender:  sender,
		dedup:   d,
		scoring: scoring.NormalizeConfig(cfg),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

const initialSubject = "Curated Property Options for You"

func buildInitialEmailBody(p Payload) string {
	return fmt.Sprintf(`Hi %s,

Thanks for your property interest. Based on your preferences, I can share curated options in Lekki and Victoria Island.

Your preference summary:
- Budget: %d
- Timeline: %s
- Payment: %s
- Location: %s
- Property Type: %s

%s

Reply to this email with your preferred viewing day and time.`,
		p.FullName, p.Budget, p.PurchaseTimeline, p.PaymentReadiness,
		p.LocationPreference, p.PropertyType, p.Message)
}

// Process runs one submission through the pipeline. A replayed
// idempotency key short-circuits to an idempotent success before any
// store access. The lead-created-but-unsent partial failure surfaces as
// InitialEmailSendError.
func (p *Pipeline) Process(ctx context.Context, payload Payload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}

	seen, err := p.dedup.Seen(ctx, payload.IdempotencyKey)
	if err == nil && seen {
		return Result{Idempotent: true}, nil
	}

	store.SafeLog(ctx, p.store, model.LogInfo, model.LogWebhookReceived, map[string]any{
		"email":          payload.Email,
		"idempotencyKey": payload.IdempotencyKey,
	})

	existing, err := p.store.FindLeadByEmail(ctx, payload.Email)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return Result{}, &DuplicateLeadError{Email: payload.Email}
	}

	formScore := scoring.FormScore(scoring.FormInput{
		Budget:       payload.Budget,
		Timeline:     scoring.MapPurchaseTimeline(payload.PurchaseTimeline),
		Payment:      scoring.MapPaymentReadiness(payload.PaymentReadiness),
		Location:     scoring.MapLocationPreference(payload.LocationPreference),
		PropertyType: scoring.MapPropertyTypeSpecificity(payload.PropertyType),
	}, p.scoring)
	interactionScore := 0.0
	totalScore := scoring.TotalScore(formScore, interactionScore)
	tier := scoring.TierFor(totalScore)

	store.SafeLog(ctx, p.store, model.LogInfo, model.LogLeadScored, map[string]any{
		"email":            payload.Email,
		"formScore":        formScore,
		"interactionScore": interactionScore,
		"totalScore":       totalScore,
		"tier":             string(tier),
	})

	lead := &model.Lead{
		ID:               p.newID(),
		FullName:         payload.FullName,
		Email:            payload.Email,
		Phone:            payload.Phone,
		Budget:           payload.Budget,
		FormScore:        formScore,
		InteractionScore: interactionScore,
		TotalScore:       totalScore,
		Tier:             tier,
		PipelineStatus:   model.StatusNew,
	}
	createCfg := resilience.PersistenceRetry()
	createCfg.OnRetry = resilience.RetryLogger("store", "create_lead")
	err = resilience.Do(ctx, createCfg, func(ctx context.Context) error {
		return p.store.CreateLead(ctx, lead)
	})
	if err != nil {
		return Result{}, err
	}

	store.SafeLog(ctx, p.store, model.LogInfo, model.LogLeadCreated, map[string]any{
		"leadId": lead.ID,
		"email":  payload.Email,
	})

	body := buildInitialEmailBody(payload)
	sendCfg := resilience.SendRetry()
	sendCfg.OnRetry = func(attempt int, err error) {
		store.SafeLog(ctx, p.store, model.LogWarn, model.LogInitialRetry, map[string]any{
			"leadId":  lead.ID,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
	receipt, err := resilience.DoVal(ctx, sendCfg, func(ctx context.Context) (model.SendReceipt, error) {
		return p.sender.SendReply(ctx, model.OutboundMessage{
			To:      payload.Email,
			Subject: initialSubject,
			Body:    body,
		})
	})
	if err != nil {
		store.SafeLog(ctx, p.store, model.LogError, model.LogSendFailed, map[string]any{
			"leadId": lead.ID,
			"email":  payload.Email,
			"error":  err.Error(),
		})
		return Result{}, &InitialEmailSendError{LeadID: lead.ID, Err: err}
	}

	sentAt := p.now().UTC()
	recordCfg := resilience.PersistenceRetry()
	recordCfg.OnRetry = resilience.RetryLogger("store", "create_email")
	err = resilience.Do(ctx, recordCfg, func(ctx context.Context) error {
		return p.store.CreateEmail(ctx, &model.EmailRecord{
			ID:                p.newID(),
			LeadID:            lead.ID,
			ProviderMessageID: receipt.MessageID,
			ThreadID:          receipt.ThreadID,
			Direction:         model.DirectionOutbound,
			Subject:           initialSubject,
			Body:              body,
			SentAt:            &sentAt,
		})
	})
	if err != nil {
		return Result{}, err
	}

	contacted := model.StatusContacted
	updateCfg := resilience.PersistenceRetry()
	updateCfg.OnRetry = resilience.RetryLogger("store", "update_lead")
	err = resilience.Do(ctx, updateCfg, func(ctx context.Context) error {
		return p.store.UpdateLead(ctx, lead.ID, model.LeadPatch{
			PipelineStatus:  &contacted,
			ThreadID:        &receipt.ThreadID,
			LastEmailSentAt: &sentAt,
		})
	})
	if err != nil {
		return Result{}, err
	}

	store.SafeLog(ctx, p.store, model.LogInfo, model.LogOutboundSent, map[string]any{
		"leadId":    lead.ID,
		"messageId": receipt.MessageID,
		"threadId":  receipt.ThreadID,
	})

	// Marked only after full success so a failed attempt stays retryable.
	_ = p.dedup.Mark(ctx, payload.IdempotencyKey)

	return Result{
		LeadID:           lead.ID,
		MessageID:        receipt.MessageID,
		ThreadID:         receipt.ThreadID,
		FormScore:        formScore,
		InteractionScore: interactionScore,
		TotalScore:       totalScore,
		Tier:             tier,
	}, nil
}
