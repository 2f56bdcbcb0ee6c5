package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

// DingTalk posts a signed markdown card to a group-bot webhook.
// Enabled when both webhook_url and secret are configured.
//
// Unlike the inbound verifier, which checks the event's own timestamp
// against a tolerance window, the outbound sign uses a fresh millisecond
// timestamp per call: the receiving bot validates call-time freshness.
type DingTalk struct {
	conf   func() config.DingTalkConf
	client *http.Client
	// now is injectable for tests.
	now func() time.Time
}

func NewDingTalk(conf func() config.DingTalkConf, client *http.Client) *DingTalk {
	return &DingTalk{conf: conf, client: client, now: time.Now}
}

func (d *DingTalk) Name() string { return "dingtalk" }

func (d *DingTalk) Enabled() bool {
	c := d.conf()
	return c.WebhookURL != "" && c.Secret != ""
}

func (d *DingTalk) Send(ctx context.Context, rec *event.PaymentRecord) error {
	c := d.conf()

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": "Payment received",
			"text": fmt.Sprintf("### Payment received %s\n\n- Product: %s x%d\n- Order: %s\n- Paid with: %s",
				rec.AmountReadable(), rec.ProductName, rec.Quantity, rec.OrderNo, rec.PaymentMethod),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return deliveryErr(d.Name(), err)
	}

	endpoint, err := SignedWebhookURL(c.WebhookURL, c.Secret, d.now().UnixMilli())
	if err != nil {
		return deliveryErr(d.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return deliveryErr(d.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := doRequest(d.client, req); err != nil {
		return deliveryErr(d.Name(), err)
	}
	return nil
}

// SignedWebhookURL appends timestamp and sign query parameters to the bot
// webhook. The sign is base64(HMAC-SHA256(secret, "{timestampMs}\n{secret}")).
func SignedWebhookURL(webhook, secret string, timestampMs int64) (string, error) {
	u, err := url.Parse(webhook)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d\n%s", timestampMs, secret)
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := u.Query()
	q.Set("timestamp", fmt.Sprintf("%d", timestampMs))
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
