package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/event"
	"github.com/gyaneshwarpardhi/payrelay/internal/notify"
)

func testRecord() *event.PaymentRecord {
	return &event.PaymentRecord{
		EventType:     "checkout.session.completed",
		ID:            "evt_1",
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Currency:      "USD",
		AmountMinor:   1999,
		Email:         "buyer@example.com",
		OrderNo:       "ORD-9",
		ProductName:   "Pro License",
		Quantity:      2,
		PaymentMethod: "card",
	}
}

func TestReceiptRender(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.html")
	tmpl := `<p>{{PRODUCT_NAME}} x{{QTY}} = {{TOTAL}} ({{ORDER_NO}}, {{PAID_WITH}}, {{CUSTOMER_EMAIL}}) {{NOT_A_FIELD}}</p>`
	if err := os.WriteFile(path, []byte(tmpl), 0o600); err != nil {
		t.Fatal(err)
	}

	got := notify.LoadReceipt(path).Render(testRecord())
	want := `<p>Pro License x2 = USD 19.99 (ORD-9, card, buyer@example.com) </p>`
	if got != want {
		t.Errorf("Render:\n got %q\nwant %q", got, want)
	}
}

func TestReceiptEmbeddedDefault(t *testing.T) {
	got := notify.LoadReceipt("").Render(testRecord())
	for _, want := range []string{"Pro License", "USD 19.99", "ORD-9"} {
		if !strings.Contains(got, want) {
			t.Errorf("embedded receipt missing %q", want)
		}
	}
	if strings.Contains(got, "{{") {
		t.Errorf("embedded receipt left placeholders unsubstituted:\n%s", got)
	}
}

func TestEmailEnablement(t *testing.T) {
	tests := []struct {
		name string
		conf config.EmailConf
		want bool
	}{
		{"both keys", config.EmailConf{APIKey: "k", To: "a@b.c"}, true},
		{"missing to", config.EmailConf{APIKey: "k"}, false},
		{"missing key", config.EmailConf{To: "a@b.c"}, false},
		{"empty", config.EmailConf{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := notify.NewEmail(func() config.EmailConf { return tt.conf }, nil, notify.LoadReceipt(""))
			if got := n.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmailSend(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conf := config.EmailConf{
		Endpoint:     srv.URL,
		APIKey:       "re_key",
		To:           "owner@example.com",
		Subject:      "Paid",
		ExtraHeaders: `{"X-Ref": "r1"}`,
	}
	n := notify.NewEmail(func() config.EmailConf { return conf }, srv.Client(), notify.LoadReceipt(""))

	if err := n.Send(context.Background(), testRecord()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer re_key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["subject"] != "Paid" {
		t.Errorf("subject = %v", gotBody["subject"])
	}
	html, _ := gotBody["html"].(string)
	if !strings.Contains(html, "USD 19.99") {
		t.Errorf("html body missing rendered total:\n%s", html)
	}
	if hdrs, ok := gotBody["headers"].(map[string]interface{}); !ok || hdrs["X-Ref"] != "r1" {
		t.Errorf("headers = %v", gotBody["headers"])
	}
}

func TestEmailInvalidExtraHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("outbound call should not happen with malformed extra_headers")
	}))
	defer srv.Close()

	conf := config.EmailConf{Endpoint: srv.URL, APIKey: "k", To: "a@b.c", ExtraHeaders: "{not json"}
	n := notify.NewEmail(func() config.EmailConf { return conf }, srv.Client(), notify.LoadReceipt(""))

	err := n.Send(context.Background(), testRecord())
	var de *notify.DeliveryError
	if !asDeliveryError(err, &de) || de.Channel != "email" {
		t.Fatalf("want email DeliveryError, got %v", err)
	}
}

func TestEmailNon2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	conf := config.EmailConf{Endpoint: srv.URL, APIKey: "k", To: "a@b.c"}
	n := notify.NewEmail(func() config.EmailConf { return conf }, srv.Client(), notify.LoadReceipt(""))

	err := n.Send(context.Background(), testRecord())
	var de *notify.DeliveryError
	if !asDeliveryError(err, &de) {
		t.Fatalf("want DeliveryError, got %v", err)
	}
	if !strings.Contains(de.Error(), "429") {
		t.Errorf("error should carry the status: %v", de)
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conf := config.TelegramConf{BotToken: "123:abc", ChatID: "-100200"}
	n := notify.NewTelegramAt(srv.URL, func() config.TelegramConf { return conf }, srv.Client())

	if err := n.Send(context.Background(), testRecord()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "-100200" || gotBody["parse_mode"] != "Markdown" {
		t.Errorf("payload = %v", gotBody)
	}
	text, _ := gotBody["text"].(string)
	if !strings.Contains(text, "USD 19.99") || !strings.Contains(text, "ORD-9") {
		t.Errorf("text = %q", text)
	}
}

func TestBarkSendFormEncoded(t *testing.T) {
	var gotPath, gotContentType string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conf := config.BarkConf{ServerURL: srv.URL, DeviceKey: "devkey123"}
	n := notify.NewBark(func() config.BarkConf { return conf }, srv.Client())

	if err := n.Send(context.Background(), testRecord()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/devkey123" {
		t.Errorf("path = %q", gotPath)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if got := gotForm.Get("title"); !strings.Contains(got, "USD 19.99") {
		t.Errorf("title = %q", got)
	}
}

func TestNotifierEnablementKeys(t *testing.T) {
	tg := notify.NewTelegram(func() config.TelegramConf { return config.TelegramConf{BotToken: "t"} }, nil)
	if tg.Enabled() {
		t.Error("telegram must require both bot_token and chat_id")
	}
	bark := notify.NewBark(func() config.BarkConf { return config.BarkConf{DeviceKey: "d"} }, nil)
	if !bark.Enabled() {
		t.Error("bark requires only device_key")
	}
	dt := notify.NewDingTalk(func() config.DingTalkConf { return config.DingTalkConf{WebhookURL: "https://x"} }, nil)
	if dt.Enabled() {
		t.Error("dingtalk must require both webhook_url and secret")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate channel registration")
		}
	}()
	reg := notify.NewRegistry()
	reg.Register(notify.NewBark(func() config.BarkConf { return config.BarkConf{} }, nil))
	reg.Register(notify.NewBark(func() config.BarkConf { return config.BarkConf{} }, nil))
}

func asDeliveryError(err error, target **notify.DeliveryError) bool {
	return errors.As(err, target)
}
