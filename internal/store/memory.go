package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lekki-homes/leadflow/internal/model"
)

// Memory is an in-process Store. It backs tests and the default
// configuration of the demo commands.
type Memory struct {
	mu     sync.RWMutex
	leads  map[string]model.Lead
	emails map[string]model.EmailRecord
	logs   []model.LogRecord
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		leads:  make(map[string]model.Lead),
		emails: make(map[string]model.EmailRecord),
	}
}

func (m *Memory) CreateLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	m.leads[lead.ID] = *lead
	return nil
}

func (m *Memory) GetLead(_ context.Context, id string) (*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, ok := m.leads[id]
	if !ok {
		return nil, &notFoundError{kind: "lead", id: id}
	}
	return &lead, nil
}

func (m *Memory) FindLeadByEmail(_ context.Context, email string) (*model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(email))
	for _, lead := range m.leads {
		if strings.ToLower(lead.Email) == needle {
			found := lead
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) UpdateLead(_ context.Context, id string, patch model.LeadPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[id]
	if !ok {
		return &notFoundError{kind: "lead", id: id}
	}
	applyLeadPatch(&lead, patch)
	lead.UpdatedAt = time.Now().UTC()
	m.leads[id] = lead
	return nil
}

func (m *Memory) ListLeads(_ context.Context) ([]model.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateEmail(_ context.Context, rec *model.EmailRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.emails[rec.ID] = *rec
	return nil
}

func (m *Memory) GetEmail(_ context.Context, id string) (*model.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.emails[id]
	if !ok {
		return nil, &notFoundError{kind: "email", id: id}
	}
	return &rec, nil
}

func (m *Memory) FindEmailByMessageID(_ context.Context, providerMessageID string) (*model.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.emails {
		if rec.ProviderMessageID != "" && rec.ProviderMessageID == providerMessageID {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) CountInboundInThread(_ context.Context, leadID, threadID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.emails {
		if rec.LeadID == leadID && rec.ThreadID == threadID && rec.Direction == model.DirectionInbound {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListDrafts(_ context.Context, status model.DraftStatus) ([]model.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.EmailRecord
	for _, rec := range m.emails {
		if rec.Direction == model.DirectionDraft && rec.DraftStatus == status {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateDraftStatus(_ context.Context, id string, status model.DraftStatus, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.emails[id]
	if !ok {
		return &notFoundError{kind: "email", id: id}
	}
	rec.DraftStatus = status
	if sentAt != nil {
		rec.SentAt = sentAt
	}
	rec.UpdatedAt = time.Now().UTC()
	m.emails[id] = rec
	return nil
}

func (m *Memory) AppendLog(_ context.Context, rec *model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, *rec)
	return nil
}

func (m *Memory) LatestLogByMessage(_ context.Context, message string) (*model.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].Message == message {
			rec := m.logs[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListLogs(_ context.Context, limit int) ([]model.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.logs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.LogRecord, 0, n)
	for i := len(m.logs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func applyLeadPatch(lead *model.Lead, patch model.LeadPatch) {
	if patch.InteractionScore != nil {
		lead.InteractionScore = *patch.InteractionScore
	}
	if patch.TotalScore != nil {
		lead.TotalScore = *patch.TotalScore
	}
	if patch.Tier != nil {
		lead.Tier = *patch.Tier
	}
	if patch.PipelineStatus != nil {
		lead.PipelineStatus = *patch.PipelineStatus
	}
	if patch.ThreadID != nil {
		lead.ThreadID = *patch.ThreadID
	}
	if patch.LastEmailSentAt != nil {
		lead.LastEmailSentAt = patch.LastEmailSentAt
	}
}
