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

const telegramAPIBase = "https://api.telegram.org"

// Telegram posts a markdown summary to a chat via the bot API.
// Enabled when both bot_token and chat_id are configured.
type Telegram struct {
	conf   func() config.TelegramConf
	client *http.Client
	// apiBase is overridable for tests.
	apiBase string
}

func NewTelegram(conf func() config.TelegramConf, client *http.Client) *Telegram {
	return &Telegram{conf: conf, client: client, apiBase: telegramAPIBase}
}

// NewTelegramAt points the adapter at an alternate API base URL.
func NewTelegramAt(apiBase string, conf func() config.TelegramConf, client *http.Client) *Telegram {
	return &Telegram{conf: conf, client: client, apiBase: apiBase}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool {
	c := t.conf()
	return c.BotToken != "" && c.ChatID != ""
}

func (t *Telegram) Send(ctx context.Context, rec *event.PaymentRecord) error {
	c := t.conf()

	payload := map[string]interface{}{
		"chat_id":    c.ChatID,
		"text":       telegramText(rec),
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return deliveryErr(t.Name(), err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, c.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return deliveryErr(t.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := doRequest(t.client, req); err != nil {
		return deliveryErr(t.Name(), err)
	}
	return nil
}

func telegramText(rec *event.PaymentRecord) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "*Payment received* %s\n", rec.AmountReadable())
	fmt.Fprintf(&b, "Product: %s x%d\n", rec.ProductName, rec.Quantity)
	fmt.Fprintf(&b, "Order: `%s`\n", rec.OrderNo)
	fmt.Fprintf(&b, "Paid with: %s", rec.PaymentMethod)
	if rec.Email != "" {
		fmt.Fprintf(&b, "\nCustomer: %s", rec.Email)
	}
	return b.String()
}
