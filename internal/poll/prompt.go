package poll

import (
	"fmt"

	"github.com/lekki-homes/leadflow/internal/model"
)

// DraftPromptInput carries the lead context a reply draft is written from.
type DraftPromptInput struct {
	LeadName     string
	LeadTier     model.Tier
	LeadStatus   model.PipelineStatus
	BuyerMessage string
}

// BuildDraftPrompt renders the drafting instructions for the AI model.
func BuildDraftPrompt(in DraftPromptInput) string {
	return fmt.Sprintf(`You are assisting a premium real-estate agent in Lekki and Victoria Island.
Write a concise and professional email reply.
Constraints:
- Keep under 180 words.
- Confirm understanding of buyer message.
- Suggest next actionable step (viewing schedule or question response).
- Keep tone polite, direct, and sales-professional.

Lead Name: %s
Lead Tier: %s
Pipeline Status: %s
Buyer Message: %s`,
		in.LeadName, in.LeadTier, in.LeadStatus, in.BuyerMessage)
}

// FallbackDraft is the templated reply used when generation fails. The
// internal note carries the failure reason for the reviewing agent and
// must be removed before sending.
func FallbackDraft(reason string) string {
	return fmt.Sprintf(`Thank you for your reply.

I have reviewed your message and will get back with the most relevant options and next steps shortly.

Internal note: %s`, reason)
}
