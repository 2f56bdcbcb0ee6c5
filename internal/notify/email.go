package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

const (
	defaultEmailEndpoint = "https://api.resend.com/emails"
	defaultEmailSubject  = "Payment received"
	defaultEmailFrom     = "receipts@payrelay.local"
)

// Email delivers a templated HTML receipt through an HTTP mail API.
// Enabled when both api_key and to are configured.
type Email struct {
	conf    func() config.EmailConf
	client  *http.Client
	receipt *Receipt
}

func NewEmail(conf func() config.EmailConf, client *http.Client, receipt *Receipt) *Email {
	return &Email{conf: conf, client: client, receipt: receipt}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled() bool {
	c := e.conf()
	return c.APIKey != "" && c.To != ""
}

func (e *Email) Send(ctx context.Context, rec *event.PaymentRecord) error {
	c := e.conf()

	payload := map[string]interface{}{
		"from":    valueOr(c.From, defaultEmailFrom),
		"to":      []string{c.To},
		"subject": valueOr(c.Subject, defaultEmailSubject),
		"html":    e.receipt.Render(rec),
	}

	// extra_headers is operator-supplied free-form JSON; a typo there must
	// surface as a delivery failure, not take down the dispatch.
	if c.ExtraHeaders != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(c.ExtraHeaders), &headers); err != nil {
			return deliveryErr(e.Name(), fmt.Errorf("parse extra_headers: %w", err))
		}
		payload["headers"] = headers
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return deliveryErr(e.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, valueOr(c.Endpoint, defaultEmailEndpoint), bytes.NewReader(body))
	if err != nil {
		return deliveryErr(e.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	if err := doRequest(e.client, req); err != nil {
		return deliveryErr(e.Name(), err)
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
