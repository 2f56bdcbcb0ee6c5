package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

const defaultBarkServer = "https://api.day.app"

// Bark sends an iOS push through a Bark server using form-encoded fields.
// Enabled when device_key is configured; server_url is optional.
type Bark struct {
	conf   func() config.BarkConf
	client *http.Client
}

func NewBark(conf func() config.BarkConf, client *http.Client) *Bark {
	return &Bark{conf: conf, client: client}
}

func (b *Bark) Name() string { return "bark" }

func (b *Bark) Enabled() bool {
	return b.conf().DeviceKey != ""
}

func (b *Bark) Send(ctx context.Context, rec *event.PaymentRecord) error {
	c := b.conf()

	form := url.Values{}
	form.Set("title", "Payment received "+rec.AmountReadable())
	form.Set("body", fmt.Sprintf("%s x%d, order %s", rec.ProductName, rec.Quantity, rec.OrderNo))
	form.Set("group", "payrelay")

	endpoint := strings.TrimRight(valueOr(c.ServerURL, defaultBarkServer), "/") + "/" + url.PathEscape(c.DeviceKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return deliveryErr(b.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := doRequest(b.client, req); err != nil {
		return deliveryErr(b.Name(), err)
	}
	return nil
}
