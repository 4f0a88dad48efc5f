// Package gate defines the contract with the external payment-SMS parser.
// The reconciliation core treats extraction as a black box: raw text and
// sender in, either a structured payment candidate or a parse error out.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the parser service could not be reached or timed
// out. Callers surface it as retryable, never fatal.
var ErrUnavailable = errors.New("parser gate unavailable")

// Candidate is a structured payment extracted from one SMS.
type Candidate struct {
	// AmountMinor is the payment amount in minor units of Currency.
	AmountMinor int64 `json:"amount_minor"`

	// Currency is the ISO 4217 code.
	Currency string `json:"currency"`

	// PayerPhone is the payer phone as extracted, not yet normalized.
	PayerPhone string `json:"payer_phone,omitempty"`

	// PayerName is the payer display name, if present in the text.
	PayerName string `json:"payer_name,omitempty"`

	// Reference is the provider transaction reference, if present.
	Reference string `json:"reference,omitempty"`

	// Confidence is the extraction confidence in [0,1], nil when unreported.
	Confidence *float64 `json:"confidence,omitempty"`

	// OccurredAt is when the payment happened. Zero means the parser could
	// not extract a time and the caller should fall back to receipt time.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// ParseError is a structured extraction failure: the SMS was readable but did
// not yield a payment. Distinct from ErrUnavailable, which means the gate
// itself failed.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed: %s", e.Message)
}

// Gate extracts structured payments from raw SMS text.
type Gate interface {
	// Parse returns a candidate, a *ParseError when the text is not a
	// recognizable payment, or ErrUnavailable (possibly wrapped) when the
	// parser service itself failed.
	Parse(ctx context.Context, rawText, senderPhone, institutionID string) (*Candidate, error)
}
