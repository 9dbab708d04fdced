package anthropic

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lekki-homes/leadflow/internal/config"
)

const draftSystemPrompt = "You write concise professional email drafts for a single-agent real estate CRM. Output plain text only."

// draftTemperature keeps replies consistent in tone across generations.
const draftTemperature = 0.2

// DraftWriter turns reply prompts into email draft bodies.
type DraftWriter struct {
	client    Client
	model     string
	maxTokens int64
}

// NewDraftWriter creates a DraftWriter from Anthropic config.
func NewDraftWriter(client Client, cfg config.AnthropicConfig) *DraftWriter {
	return &DraftWriter{
		client:    client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// GenerateDraft produces a plain-text reply draft for the given prompt.
func (w *DraftWriter) GenerateDraft(ctx context.Context, prompt string) (string, error) {
	temp := draftTemperature
	resp, err := w.client.CreateMessage(ctx, MessageRequest{
		Model:       w.model,
		MaxTokens:   w.maxTokens,
		System:      draftSystemPrompt,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: generate draft")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	body := strings.TrimSpace(sb.String())
	if body == "" {
		return "", eris.New("anthropic: empty draft response")
	}

	resp.Usage.LogCost(w.model, "draft_generation")

	return body, nil
}
