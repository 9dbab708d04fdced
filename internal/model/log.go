package model

import "time"

// LogLevel is the severity of an operational log record.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Well-known log message keys. LogPollCompleted doubles as the poll
// pipeline's resume cursor: the most recent record with this key carries
// the completion timestamp the next cycle starts from.
const (
	LogWebhookReceived  = "lead_webhook_received"
	LogLeadScored       = "lead_scored"
	LogLeadCreated      = "lead_created"
	LogInitialRetry     = "initial_email_retry"
	LogSendFailed       = "email_send_failed"
	LogOutboundSent     = "email_outbound_sent"
	LogInboundProcessed = "email_inbound_processed"
	LogUnmatched        = "email_unmatched"
	LogEmptyIgnored     = "email_empty_ignored"
	LogThreadConflict   = "email_thread_conflict"
	LogPollCompleted    = "email_poll_completed"
)

// LogRecord is an append-only operational event.
type LogRecord struct {
	ID        string         `json:"id"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
