// Package store persists leads, email records, and processing logs.
// Two backends are provided: SQLite for single-box deployments and
// Postgres for shared ones, behind the same Store interface.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lekki-homes/leadflow/internal/model"
)

type notFoundError struct {
	kind string
	id   string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("store: %s %q not found", e.kind, e.id)
}

// ErrNotFound reports whether err is a missing-record error from a Get
// operation.
func ErrNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

// Store is the persistence surface shared by the intake, poll, and
// approval pipelines.
//
// Get* operations return a not-found error when the record is missing;
// Find* operations return (nil, nil) on a miss.
type Store interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error
	ListLeads(ctx context.Context) ([]model.Lead, error)

	CreateEmail(ctx context.Context, rec *model.EmailRecord) error
	GetEmail(ctx context.Context, id string) (*model.EmailRecord, error)
	FindEmailByMessageID(ctx context.Context, providerMessageID string) (*model.EmailRecord, error)
	CountInboundInThread(ctx context.Context, leadID, threadID string) (int, error)
	ListDrafts(ctx context.Context, status model.DraftStatus) ([]model.EmailRecord, error)
	UpdateDraftStatus(ctx context.Context, id string, status model.DraftStatus, sentAt *time.Time) error

	AppendLog(ctx context.Context, rec *model.LogRecord) error
	LatestLogByMessage(ctx context.Context, message string) (*model.LogRecord, error)
	ListLogs(ctx context.Context, limit int) ([]model.LogRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// SafeLog appends a processing log and never fails the caller: a broken
// log store must not take a pipeline down with it.
func SafeLog(ctx context.Context, s Store, level model.LogLevel, message string, metadata map[string]any) {
	rec := &model.LogRecord{
		Level:     level,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.AppendLog(ctx, rec); err != nil {
		zap.L().Warn("store: append log failed",
			zap.String("message", message),
			zap.Error(err))
	}
}
