package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/resilience"
	"github.com/lekki-homes/leadflow/internal/store"
)

// recordingStore wraps the in-memory store and counts every call so
// tests can assert short-circuit behavior.
type recordingStore struct {
	*store.Memory
	mu    sync.Mutex
	calls map[string]int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: store.NewMemory(), calls: make(map[string]int)}
}

func (r *recordingStore) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
}

func (r *recordingStore) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *recordingStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	r.record("CreateLead")
	return r.Memory.CreateLead(ctx, lead)
}

func (r *recordingStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	r.record("FindLeadByEmail")
	return r.Memory.FindLeadByEmail(ctx, email)
}

func (r *recordingStore) UpdateLead(ctx context.Context, id string, patch model.LeadPatch) error {
	r.record("UpdateLead")
	return r.Memory.UpdateLead(ctx, id, patch)
}

func (r *recordingStore) CreateEmail(ctx context.Context, rec *model.EmailRecord) error {
	r.record("CreateEmail")
	return r.Memory.CreateEmail(ctx, rec)
}

func (r *recordingStore) AppendLog(ctx context.Context, rec *model.LogRecord) error {
	r.record("AppendLog")
	return r.Memory.AppendLog(ctx, rec)
}

// fakeSender fails a configurable number of sends before succeeding.
// Failures are transient unless err overrides them.
type fakeSender struct {
	failTimes int
	calls     int
	receipt   model.SendReceipt
	sent      []model.OutboundMessage
	err       error
}

func (f *fakeSender) SendReply(_ context.Context, msg model.OutboundMessage) (model.SendReceipt, error) {
	f.calls++
	f.sent = append(f.sent, msg)
	if f.calls <= f.failTimes {
		if f.err != nil {
			return model.SendReceipt{}, f.err
		}
		return model.SendReceipt{}, resilience.NewTransientError(errors.New("smtp unavailable"), 0)
	}
	return f.receipt, nil
}

func validPayload() Payload {
	return Payload{
		IdempotencyKey:     "wh-key-0001",
		FullName:           "Adaobi Eze",
		Email:              "adaobi@example.com",
		Phone:              "+2348012345678",
		Budget:             150_000_000,
		PurchaseTimeline:   "Immediate (0-1 months)",
		PaymentReadiness:   "Cash buyer",
		LocationPreference: "Lekki Phase 1",
		PropertyType:       "4-bedroom terrace duplex",
		Message:            "I want to schedule viewing as soon as possible.",
	}
}

func fastRetries(p *Pipeline) *Pipeline {
	p.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return p
}
