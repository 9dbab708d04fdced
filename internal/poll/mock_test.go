package poll

import (
	"context"
	"errors"
	"time"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/store"
)

type fakeFetcher struct {
	messages []model.InboundMessage
	err      error
	after    []*time.Time
}

func (f *fakeFetcher) FetchInbound(_ context.Context, after *time.Time) ([]model.InboundMessage, error) {
	f.after = append(f.after, after)
	return f.messages, f.err
}

type fakeDraftGenerator struct {
	draft   string
	err     error
	prompts []string
}

func (f *fakeDraftGenerator) GenerateDraft(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.draft, nil
}

var errGenerationDown = errors.New("model overloaded")

func seedContactedLead(s store.Store, threadID string, lastSent time.Time) *model.Lead {
	lead := &model.Lead{
		FullName:        "Adaobi Eze",
		Email:           "adaobi@example.com",
		FormScore:       80,
		TotalScore:      48,
		Tier:            model.TierCold,
		PipelineStatus:  model.StatusContacted,
		ThreadID:        threadID,
		LastEmailSentAt: &lastSent,
	}
	if err := s.CreateLead(context.Background(), lead); err != nil {
		panic(err)
	}
	return lead
}

func inboundMessage(id, thread, body string, receivedAt time.Time) model.InboundMessage {
	return model.InboundMessage{
		MessageID:  id,
		ThreadID:   thread,
		FromEmail:  "Adaobi@Example.com",
		Subject:    "Property inquiry",
		Body:       body,
		ReceivedAt: receivedAt,
	}
}
