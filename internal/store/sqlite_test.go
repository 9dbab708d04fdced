package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekki-homes/leadflow/internal/model"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteLeadLifecycle(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	lead := &model.Lead{
		FullName:       "Adaobi Eze",
		Email:          "adaobi@example.com",
		Phone:          "+2348012345678",
		Budget:         150_000_000,
		FormScore:      82.5,
		TotalScore:     82.5,
		Tier:           model.TierHot,
		PipelineStatus: model.StatusNew,
	}
	require.NoError(t, s.CreateLead(ctx, lead))
	require.NotEmpty(t, lead.ID)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Adaobi Eze", got.FullName)
	assert.Equal(t, model.TierHot, got.Tier)
	assert.Nil(t, got.LastEmailSentAt)

	found, err := s.FindLeadByEmail(ctx, "ADAOBI@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, lead.ID, found.ID)

	missing, err := s.FindLeadByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	sentAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	status := model.StatusContacted
	thread := "thread-1"
	err = s.UpdateLead(ctx, lead.ID, model.LeadPatch{
		PipelineStatus:  &status,
		ThreadID:        &thread,
		LastEmailSentAt: &sentAt,
	})
	require.NoError(t, err)

	got, err = s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContacted, got.PipelineStatus)
	assert.Equal(t, "thread-1", got.ThreadID)
	require.NotNil(t, got.LastEmailSentAt)
	assert.True(t, got.LastEmailSentAt.Equal(sentAt))
}

func TestSQLiteGetLeadNotFound(t *testing.T) {
	s := openTestDB(t)

	_, err := s.GetLead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, ErrNotFound(err))
}

func TestSQLiteUpdateLeadNotFound(t *testing.T) {
	s := openTestDB(t)

	tier := model.TierWarm
	err := s.UpdateLead(context.Background(), "missing", model.LeadPatch{Tier: &tier})
	require.Error(t, err)
	assert.True(t, ErrNotFound(err))
}

func TestSQLiteEmailsAndDrafts(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	lead := &model.Lead{
		FullName:       "Tunde Bakare",
		Email:          "tunde@example.com",
		Tier:           model.TierWarm,
		PipelineStatus: model.StatusContacted,
	}
	require.NoError(t, s.CreateLead(ctx, lead))

	inbound := &model.EmailRecord{
		LeadID:            lead.ID,
		ProviderMessageID: "msg-1",
		ThreadID:          "thread-1",
		Direction:         model.DirectionInbound,
		Body:              "Can we schedule a viewing?",
	}
	require.NoError(t, s.CreateEmail(ctx, inbound))

	draft := &model.EmailRecord{
		LeadID:      lead.ID,
		ThreadID:    "thread-1",
		Direction:   model.DirectionDraft,
		Subject:     "Re: Property inquiry",
		Body:        "Happy to set that up.",
		DraftStatus: model.DraftPendingApproval,
	}
	require.NoError(t, s.CreateEmail(ctx, draft))

	byMsg, err := s.FindEmailByMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, byMsg)
	assert.Equal(t, inbound.ID, byMsg.ID)

	none, err := s.FindEmailByMessageID(ctx, "msg-unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	count, err := s.CountInboundInThread(ctx, lead.ID, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pending, err := s.ListDrafts(ctx, model.DraftPendingApproval)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, draft.ID, pending[0].ID)

	sentAt := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.UpdateDraftStatus(ctx, draft.ID, model.DraftSent, &sentAt))

	got, err := s.GetEmail(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftSent, got.DraftStatus)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(sentAt))

	pending, err = s.ListDrafts(ctx, model.DraftPendingApproval)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteLogs(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	first := &model.LogRecord{
		Level:     model.LogInfo,
		Message:   model.LogPollCompleted,
		Metadata:  map[string]any{"pollCompletedAt": "2026-03-10T09:00:00Z"},
		CreatedAt: time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC),
	}
	require.NoError(t, s.AppendLog(ctx, first))

	second := &model.LogRecord{
		Level:     model.LogInfo,
		Message:   model.LogPollCompleted,
		Metadata:  map[string]any{"pollCompletedAt": "2026-03-10T10:00:00Z"},
		CreatedAt: time.Date(2026, 3, 10, 10, 0, 1, 0, time.UTC),
	}
	require.NoError(t, s.AppendLog(ctx, second))

	latest, err := s.LatestLogByMessage(ctx, model.LogPollCompleted)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-03-10T10:00:00Z", latest.Metadata["pollCompletedAt"])

	none, err := s.LatestLogByMessage(ctx, model.LogUnmatched)
	require.NoError(t, err)
	assert.Nil(t, none)

	logs, err := s.ListLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[0].ID)
}
