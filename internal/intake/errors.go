package intake

import "fmt"

// ValidationError reports a malformed webhook payload. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake: invalid payload field %q: %s", e.Field, e.Reason)
}

// DuplicateLeadError reports that a lead with the submitted email already
// exists. Distinct from an idempotency-key replay, which is not an error.
type DuplicateLeadError struct {
	Email string
}

func (e *DuplicateLeadError) Error() string {
	return fmt.Sprintf("intake: duplicate lead for email %s", e.Email)
}

// InitialEmailSendError reports a partial success: the lead was created
// but the first outreach email could not be sent. Callers must surface
// this distinctly so the agent can follow up manually.
type InitialEmailSendError struct {
	LeadID string
	Err    error
}

func (e *InitialEmailSendError) Error() string {
	return fmt.Sprintf("intake: lead %s created but initial email failed: %v", e.LeadID, e.Err)
}

func (e *InitialEmailSendError) Unwrap() error { return e.Err }
