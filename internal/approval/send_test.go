package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/store"
)

type countingStore struct {
	*store.Memory
	mu    sync.Mutex
	calls int
}

func (c *countingStore) bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingStore) GetEmail(ctx context.Context, id string) (*model.EmailRecord, error) {
	c.bump()
	return c.Memory.GetEmail(ctx, id)
}

func (c *countingStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	c.bump()
	return c.Memory.GetLead(ctx, id)
}

type stubSender struct {
	receipt model.SendReceipt
	err     error
	sent    []model.OutboundMessage
}

func (s *stubSender) SendReply(_ context.Context, msg model.OutboundMessage) (model.SendReceipt, error) {
	s.sent = append(s.sent, msg)
	return s.receipt, s.err
}

type fixture struct {
	store  *countingStore
	sender *stubSender
	m      *Machine
	lead   *model.Lead
	draft  *model.EmailRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cs := &countingStore{Memory: store.NewMemory()}

	sent := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	lead := &model.Lead{
		FullName:        "Adaobi Eze",
		Email:           "adaobi@example.com",
		Tier:            model.TierHot,
		PipelineStatus:  model.StatusInterested,
		ThreadID:        "thread-1",
		LastEmailSentAt: &sent,
	}
	require.NoError(t, cs.CreateLead(ctx, lead))

	draft := &model.EmailRecord{
		LeadID:      lead.ID,
		ThreadID:    "thread-1",
		Direction:   model.DirectionDraft,
		Subject:     "Re: Property inquiry",
		Body:        "Generated draft body.",
		DraftStatus: model.DraftPendingApproval,
	}
	require.NoError(t, cs.CreateEmail(ctx, draft))

	sender := &stubSender{receipt: model.SendReceipt{MessageID: "msg-out", ThreadID: "thread-1"}}
	m := NewMachine(cs, sender)
	m.now = func() time.Time { return time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC) }

	return &fixture{store: cs, sender: sender, m: m, lead: lead, draft: draft}
}

func approvedInput(f *fixture) Input {
	return Input{
		DraftID:        f.draft.ID,
		ExpectedStatus: model.DraftPendingApproval,
		Body:           "Edited final body.",
		ThreadID:       "thread-1",
	}
}

func TestSendApprovedDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, err := f.m.Send(ctx, approvedInput(f))
	require.NoError(t, err)

	assert.Equal(t, f.draft.ID, out.DraftID)
	assert.Equal(t, "msg-out", out.SentMessageID)
	assert.Equal(t, "thread-1", out.ThreadID)
	assert.Equal(t, f.lead.ID, out.LeadID)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "adaobi@example.com", f.sender.sent[0].To)
	assert.Equal(t, "Edited final body.", f.sender.sent[0].Body, "agent edits win over the stored draft")
	assert.Equal(t, "thread-1", f.sender.sent[0].ThreadID)

	draft, err := f.store.GetEmail(ctx, f.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftSent, draft.DraftStatus)
	require.NotNil(t, draft.SentAt)

	outbound, err := f.store.FindEmailByMessageID(ctx, "msg-out")
	require.NoError(t, err)
	require.NotNil(t, outbound)
	assert.Equal(t, model.DirectionOutbound, outbound.Direction)
	assert.Equal(t, "Edited final body.", outbound.Body)

	lead, err := f.store.GetLead(ctx, f.lead.ID)
	require.NoError(t, err)
	require.NotNil(t, lead.LastEmailSentAt)
	assert.True(t, lead.LastEmailSentAt.Equal(out.SentAt))
}

func TestSendRejectsAssertedStatusBeforeLoading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := approvedInput(f)
	in.ExpectedStatus = model.DraftNeedsReview

	_, err := f.m.Send(ctx, in)

	var mismatch *DraftStatusMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Zero(t, f.store.calls, "draft must not be loaded for a rejected asserted status")
	assert.Empty(t, f.sender.sent)
}

func TestSendDraftNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := approvedInput(f)
	in.DraftID = "missing"

	_, err := f.m.Send(ctx, in)

	var notFound *DraftNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.DraftID)
}

func TestSendRejectsNonDraftRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	outbound := &model.EmailRecord{
		LeadID:    f.lead.ID,
		ThreadID:  "thread-1",
		Direction: model.DirectionOutbound,
		Body:      "already sent",
	}
	require.NoError(t, f.store.CreateEmail(ctx, outbound))

	in := approvedInput(f)
	in.DraftID = outbound.ID

	_, err := f.m.Send(ctx, in)

	var mismatch *DraftStatusMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSendRejectsPersistedStatusMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.UpdateDraftStatus(ctx, f.draft.ID, model.DraftSent, nil))

	_, err := f.m.Send(ctx, approvedInput(f))

	var mismatch *DraftStatusMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, f.sender.sent, "double-send race must not reach the provider")
}

func TestSendRejectsDraftThreadMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := approvedInput(f)
	in.ThreadID = "thread-other"

	_, err := f.m.Send(ctx, in)

	var mismatch *ThreadMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSendRejectsLeadThreadMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := "thread-moved"
	require.NoError(t, f.store.UpdateLead(ctx, f.lead.ID, model.LeadPatch{ThreadID: &other}))

	_, err := f.m.Send(ctx, approvedInput(f))

	var mismatch *ThreadMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, f.sender.sent)
}

func TestSendProviderThreadDisagreement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sender.receipt = model.SendReceipt{MessageID: "msg-out", ThreadID: "thread-unexpected"}

	_, err := f.m.Send(ctx, approvedInput(f))

	var mismatch *ThreadMismatchError
	require.ErrorAs(t, err, &mismatch)

	draft, err := f.store.GetEmail(ctx, f.draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftPendingApproval, draft.DraftStatus, "draft must not be marked Sent")

	conflict, err := f.store.LatestLogByMessage(ctx, model.LogThreadConflict)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "thread-unexpected", conflict.Metadata["actualThreadId"])
}
