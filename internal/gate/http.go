package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPGate calls a remote parser service over HTTP.
type HTTPGate struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGate creates a gate client for the parser service at baseURL.
// timeout bounds each parse call.
func NewHTTPGate(baseURL string, timeout time.Duration) *HTTPGate {
	return &HTTPGate{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type parseRequest struct {
	Text          string `json:"text"`
	SenderPhone   string `json:"sender_phone"`
	InstitutionID string `json:"institution_id"`
}

type parseResponse struct {
	Candidate *Candidate `json:"candidate,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Parse posts the SMS to the parser service and decodes the result.
func (g *HTTPGate) Parse(ctx context.Context, rawText, senderPhone, institutionID string) (*Candidate, error) {
	body, err := json.Marshal(parseRequest{
		Text:          rawText,
		SenderPhone:   senderPhone,
		InstitutionID: institutionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The service reports "text is not a payment" as 422 with an error body.
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrUnavailable, err)
	}

	if decoded.Candidate == nil {
		msg := decoded.Error
		if msg == "" {
			msg = "no candidate returned"
		}
		return nil, &ParseError{Message: msg}
	}

	return decoded.Candidate, nil
}
