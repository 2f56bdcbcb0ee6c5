package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

// Field defaults when no candidate source resolves.
const (
	DefaultCurrency      = "USD"
	DefaultProductName   = "payment"
	DefaultPaymentMethod = "processor"
	DefaultQuantity      = 1
)

// accessor extracts one candidate value from the payment object. It returns
// "" when the candidate is absent, letting the chain fall through.
type accessor func(obj map[string]interface{}) string

// Each record field is resolved by an ordered candidate chain: first
// non-empty wins. The chains cover the session-completed, intent-succeeded
// and invoice-paid payload shapes without branching on event type — each
// shape simply populates different candidates. Adding a new upstream shape
// means adding a row here, not a new conditional.
var (
	amountChain = []accessor{
		field("amount_total"),    // checkout session
		field("amount_received"), // payment intent
		field("amount_paid"),     // invoice
		field("amount"),
	}
	emailChain = []accessor{
		path("customer_details", "email"),
		field("customer_email"),
		field("receipt_email"),
		path("metadata", "email"),
	}
	orderNoChain = []accessor{
		path("metadata", "order_no"),
		field("client_reference_id"),
		field("payment_intent"),
		field("number"),
		field("id"),
	}
	productChain = []accessor{
		path("metadata", "product_name"),
		field("description"),
	}
	methodChain = []accessor{
		path("metadata", "payment_method"),
		firstElem("payment_method_types"),
	}
)

// Normalize maps a raw webhook event onto the canonical PaymentRecord. It is
// total: every field has a terminal default, so a missing or oddly shaped
// data.object degrades to defaults instead of failing.
func Normalize(raw *event.RawEvent, receivedAt time.Time) *event.PaymentRecord {
	obj := raw.Object()

	rec := &event.PaymentRecord{
		EventType:     raw.Type,
		ID:            raw.ID,
		CreatedAt:     createdAt(raw, receivedAt),
		Currency:      currency(obj),
		AmountMinor:   amountMinor(obj),
		Email:         resolve(obj, emailChain, ""),
		OrderNo:       resolve(obj, orderNoChain, raw.ID),
		ProductName:   resolve(obj, productChain, DefaultProductName),
		Quantity:      quantity(obj),
		PaymentMethod: resolve(obj, methodChain, DefaultPaymentMethod),
		CustomerID:    field("customer")(obj),
	}
	return rec
}

func resolve(obj map[string]interface{}, chain []accessor, fallback string) string {
	for _, get := range chain {
		if v := get(obj); v != "" {
			return v
		}
	}
	return fallback
}

func createdAt(raw *event.RawEvent, receivedAt time.Time) time.Time {
	if raw.Created > 0 {
		return time.Unix(raw.Created, 0).UTC()
	}
	return receivedAt
}

func currency(obj map[string]interface{}) string {
	if c := field("currency")(obj); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultCurrency
}

func amountMinor(obj map[string]interface{}) int64 {
	for _, get := range amountChain {
		if v := get(obj); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func quantity(obj map[string]interface{}) int {
	v := path("metadata", "quantity")(obj)
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return DefaultQuantity
	}
	return n
}

// field reads a top-level object key.
func field(key string) accessor {
	return func(obj map[string]interface{}) string {
		return stringify(obj[key])
	}
}

// path walks nested maps, e.g. metadata.order_no.
func path(keys ...string) accessor {
	return func(obj map[string]interface{}) string {
		cur := obj
		for i, k := range keys {
			if i == len(keys)-1 {
				return stringify(cur[k])
			}
			next, ok := cur[k].(map[string]interface{})
			if !ok {
				return ""
			}
			cur = next
		}
		return ""
	}
}

// firstElem reads the first element of a string array, e.g.
// payment_method_types[0].
func firstElem(key string) accessor {
	return func(obj map[string]interface{}) string {
		arr, ok := obj[key].([]interface{})
		if !ok || len(arr) == 0 {
			return ""
		}
		return stringify(arr[0])
	}
}

// stringify renders the loose JSON value types the chains may encounter.
// json.Unmarshal into map[string]interface{} yields float64 for numbers;
// amounts arrive as integral values so the round-trip is lossless for them.
func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
