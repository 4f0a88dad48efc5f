package models

// ParseStatus is the extraction state of a received SMS.
type ParseStatus string

const (
	// ParsePending means the SMS failed extraction and awaits retry or resolution.
	ParsePending ParseStatus = "pending"

	// ParseParsed is terminal: a retry succeeded and a Transaction was created.
	ParseParsed ParseStatus = "parsed"

	// ParseFailed is terminal: staff resolved the failure without a Transaction.
	ParseFailed ParseStatus = "failed"
)

// Resolution values staff may apply to a pending parse failure.
const (
	// ResolutionIgnored marks the SMS as noise to be dropped.
	ResolutionIgnored = "ignored"

	// ResolutionNotPayment marks the SMS as genuine but not a payment.
	ResolutionNotPayment = "not_payment"
)

// ParseFailure is one SMS that failed structured extraction.
type ParseFailure struct {
	// ID is the unique identifier for the parse failure (UUID format).
	ID string

	// InstitutionID scopes the failure to one institution.
	InstitutionID string

	// ReceivedAt is the Unix timestamp the SMS arrived.
	ReceivedAt int64

	// SenderPhone is the raw sender identity from the SMS gateway.
	SenderPhone string

	// RawText is the untouched SMS body, kept verbatim for retries.
	RawText string

	// ParseError is the most recent error message from the parser gate.
	ParseError string

	// Status is the extraction lifecycle state.
	Status ParseStatus

	// ResolutionStatus is ResolutionIgnored or ResolutionNotPayment once staff
	// resolve the failure; empty otherwise.
	ResolutionStatus string

	// ResolutionNote is the optional staff note recorded on resolution.
	ResolutionNote string

	// TransactionID is the ledger transaction created by a successful retry.
	// Retrying an already-parsed failure returns this transaction instead of
	// creating a second one.
	TransactionID string

	// Attempts counts parse attempts, including the original ingest.
	Attempts int
}
