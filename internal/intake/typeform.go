package intake

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Typeform field identifiers for the property-inquiry form. Deliveries
// are matched by ref first, falling back to the legacy field id.
var typeformFields = map[string]struct{ ref, id string }{
	"fullName":           {"06ea7c11-8020-40ac-96c0-31a0f69e3036", "BO8x5fgg8RwC"},
	"email":              {"6af29353-48e7-46f3-b851-d45406107c28", "pnostcMC0Mr7"},
	"phone":              {"d19f6562-f02c-479c-8c12-1a496d2f4e58", "vUeplXz7YLhp"},
	"budget":             {"d8ba6dd1-b292-45f9-92c0-f2b3251f90ac", "qFSeII9JilJ6"},
	"locationPreference": {"20454b3e-3f39-4e7b-b1ca-d35a12715f92", "IBIFQdG2L4Im"},
	"purchaseTimeline":   {"4215cc7f-de11-4c90-890a-c3f37acb2874", "dngu5AG5UOVz"},
	"paymentReadiness":   {"6d3e06f9-4dbe-4f4a-89ca-747283dfc321", "c28I66aZgVW9"},
	"propertyType":       {"cecb112a-93f1-4fc1-9e9e-052c24699f43", "hhKBfK5tA7yh"},
	"message":            {"6693957e-ce20-48b5-819e-e9253c01933b", "98mlxEIINyVc"},
}

type typeformAnswer struct {
	Type  string `json:"type"`
	Field struct {
		ID  string `json:"id"`
		Ref string `json:"ref"`
	} `json:"field"`
	Text        string   `json:"text"`
	Email       string   `json:"email"`
	Number      *float64 `json:"number"`
	PhoneNumber string   `json:"phone_number"`
	Choice      struct {
		Label string `json:"label"`
	} `json:"choice"`
	Choices struct {
		Labels []string `json:"labels"`
	} `json:"choices"`
}

type rawWebhook struct {
	Payload
	EventID      string `json:"event_id"`
	ResponseID   string `json:"response_id"`
	FormResponse *struct {
		Token   string           `json:"token"`
		Answers []typeformAnswer `json:"answers"`
	} `json:"form_response"`
}

func answerValue(a typeformAnswer) string {
	switch a.Type {
	case "email":
		return strings.TrimSpace(a.Email)
	case "phone_number":
		return strings.TrimSpace(a.PhoneNumber)
	case "number":
		if a.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*a.Number, 'f', -1, 64)
	case "short_text", "long_text", "text":
		return strings.TrimSpace(a.Text)
	case "choice", "multiple_choice":
		return strings.TrimSpace(a.Choice.Label)
	case "choices":
		var labels []string
		for _, l := range a.Choices.Labels {
			if strings.TrimSpace(l) != "" {
				labels = append(labels, l)
			}
		}
		return strings.Join(labels, ", ")
	default:
		for _, v := range []string{a.Text, a.Email, a.PhoneNumber, a.Choice.Label} {
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		if a.Number != nil {
			return strconv.FormatFloat(*a.Number, 'f', -1, 64)
		}
		return ""
	}
}

// ParsePayload decodes a webhook delivery body into a Payload. Native
// payload fields are read directly; when a Typeform form_response is
// present its answers override them. The idempotency key falls back
// through payload key, form token, response id, event id, then the
// delivery header.
func ParsePayload(body []byte, headerIdempotencyKey string) (Payload, error) {
	var raw rawWebhook
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, eris.Wrap(err, "intake: decode webhook body")
	}

	p := raw.Payload
	if raw.FormResponse != nil {
		byRef := make(map[string]string)
		byID := make(map[string]string)
		for _, a := range raw.FormResponse.Answers {
			value := answerValue(a)
			if value == "" {
				continue
			}
			if a.Field.Ref != "" {
				byRef[a.Field.Ref] = value
			}
			if a.Field.ID != "" {
				byID[a.Field.ID] = value
			}
		}

		lookup := func(field string) string {
			ids := typeformFields[field]
			if v, ok := byRef[ids.ref]; ok {
				return v
			}
			return byID[ids.id]
		}

		setIf := func(dst *string, field string) {
			if v := lookup(field); v != "" {
				*dst = v
			}
		}
		setIf(&p.FullName, "fullName")
		setIf(&p.Email, "email")
		setIf(&p.Phone, "phone")
		setIf(&p.PurchaseTimeline, "purchaseTimeline")
		setIf(&p.PaymentReadiness, "paymentReadiness")
		setIf(&p.LocationPreference, "locationPreference")
		setIf(&p.PropertyType, "propertyType")
		setIf(&p.Message, "message")
		if v := lookup("budget"); v != "" {
			if budget, err := strconv.ParseFloat(v, 64); err == nil {
				p.Budget = int64(budget)
			}
		}
	}

	if p.IdempotencyKey == "" && raw.FormResponse != nil {
		p.IdempotencyKey = strings.TrimSpace(raw.FormResponse.Token)
	}
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = strings.TrimSpace(raw.ResponseID)
	}
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = strings.TrimSpace(raw.EventID)
	}
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = headerIdempotencyKey
	}

	return p, nil
}
