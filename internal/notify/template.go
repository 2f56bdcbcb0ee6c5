package notify

import (
	_ "embed"
	"os"
	"regexp"
	"strconv"

	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

//go:embed receipt.html
var defaultReceiptHTML string

// placeholderRe matches the upstream template markers, e.g. {{ORDER_NO}}.
// This is deliberately not html/template syntax: the receipt files are
// shared with non-Go tooling and use bare uppercase markers.
var placeholderRe = regexp.MustCompile(`\{\{[A-Z_]+\}\}`)

// Receipt renders PaymentRecords into the operator's HTML receipt layout.
type Receipt struct {
	html string
}

// LoadReceipt reads the template at path, falling back to the embedded
// default when path is empty or unreadable.
func LoadReceipt(path string) *Receipt {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return &Receipt{html: string(data)}
		}
	}
	return &Receipt{html: defaultReceiptHTML}
}

// Render substitutes the recognized placeholders from rec. Unrecognized
// placeholders render as the empty string, never an error.
func (t *Receipt) Render(rec *event.PaymentRecord) string {
	vals := placeholderValues(rec)
	return placeholderRe.ReplaceAllStringFunc(t.html, func(m string) string {
		return vals[m]
	})
}

func placeholderValues(rec *event.PaymentRecord) map[string]string {
	return map[string]string{
		"{{PRODUCT_NAME}}":   rec.ProductName,
		"{{QTY}}":            strconv.Itoa(rec.Quantity),
		"{{ORDER_NO}}":       rec.OrderNo,
		"{{PAID_WITH}}":      rec.PaymentMethod,
		"{{CUSTOMER_EMAIL}}": rec.Email,
		"{{TOTAL}}":          rec.AmountReadable(),
	}
}
