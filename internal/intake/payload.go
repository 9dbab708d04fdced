package intake

import (
	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

// Payload is a normalized lead-capture submission, either native or
// mapped from a Typeform delivery.
type Payload struct {
	IdempotencyKey     string `json:"idempotencyKey" validate:"required,min=8"`
	FullName           string `json:"fullName" validate:"required,max=255"`
	Email              string `json:"email" validate:"required"`
	Phone              string `json:"phone" validate:"required,min=5,max=50"`
	Budget             int64  `json:"budget" validate:"required,gt=0"`
	PurchaseTimeline   string `json:"purchaseTimeline" validate:"required"`
	PaymentReadiness   string `json:"paymentReadiness" validate:"required"`
	LocationPreference string `json:"locationPreference" validate:"required"`
	PropertyType       string `json:"propertyType" validate:"required"`
	Message            string `json:"message" validate:"required,max=10000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks payload shape and email format. Returns a
// ValidationError naming the first offending field.
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return &ValidationError{Field: errs[0].Field(), Reason: "failed " + errs[0].Tag() + " check"}
		}
		return &ValidationError{Field: "payload", Reason: err.Error()}
	}
	if err := checkmail.ValidateFormat(p.Email); err != nil {
		return &ValidationError{Field: "Email", Reason: "malformed email address"}
	}
	return nil
}
