package model

import "time"

// Tier is the coarse lead-quality bucket derived from the total score.
type Tier string

const (
	TierHot  Tier = "Hot"
	TierWarm Tier = "Warm"
	TierCold Tier = "Cold"
)

// PipelineStatus is the lead's conversation stage.
type PipelineStatus string

const (
	StatusNew         PipelineStatus = "New"
	StatusContacted   PipelineStatus = "Contacted"
	StatusInterested  PipelineStatus = "Interested"
	StatusQuestion    PipelineStatus = "Question"
	StatusObjection   PipelineStatus = "Objection"
	StatusUnqualified PipelineStatus = "Unqualified"
	StatusClosed      PipelineStatus = "Closed"
)

// Lead is a captured buyer. Email is unique across leads. ThreadID is the
// single email conversation bound to the lead; empty means no thread yet.
// Once bound, every inbound and outbound message must carry the same id;
// a mismatch is a conflict, never a silent merge.
type Lead struct {
	ID               string         `json:"id"`
	FullName         string         `json:"full_name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone,omitempty"`
	Budget           int64          `json:"budget,omitempty"`
	FormScore        float64        `json:"form_score"`
	InteractionScore float64        `json:"interaction_score"`
	TotalScore       float64        `json:"total_score"`
	Tier             Tier           `json:"tier"`
	PipelineStatus   PipelineStatus `json:"pipeline_status"`
	ThreadID         string         `json:"thread_id,omitempty"`
	LastEmailSentAt  *time.Time     `json:"last_email_sent_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// LeadPatch is a partial lead update. Nil fields are left untouched.
type LeadPatch struct {
	InteractionScore *float64        `json:"interaction_score,omitempty"`
	TotalScore       *float64        `json:"total_score,omitempty"`
	Tier             *Tier           `json:"tier,omitempty"`
	PipelineStatus   *PipelineStatus `json:"pipeline_status,omitempty"`
	ThreadID         *string         `json:"thread_id,omitempty"`
	LastEmailSentAt  *time.Time      `json:"last_email_sent_at,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p LeadPatch) IsEmpty() bool {
	return p.InteractionScore == nil && p.TotalScore == nil && p.Tier == nil &&
		p.PipelineStatus == nil && p.ThreadID == nil && p.LastEmailSentAt == nil
}
