package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the freshness window applied when the config does not
// set one.
const DefaultTolerance = 300 * time.Second

// Reason discriminates why verification failed. It is for logs only: the
// HTTP layer must collapse every reason into one generic 400 so a forger
// cannot probe which check tripped.
type Reason string

const (
	ReasonMalformedHeader Reason = "malformed_header"
	ReasonMissingSecret   Reason = "missing_secret"
	ReasonStaleTimestamp  Reason = "stale_timestamp"
	ReasonBadSignature    Reason = "bad_signature"
)

// AuthError is returned for every verification failure.
type AuthError struct {
	Reason Reason
	detail string
}

func (e *AuthError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("signature: %s", e.Reason)
	}
	return fmt.Sprintf("signature: %s: %s", e.Reason, e.detail)
}

func authErr(r Reason, detail string) *AuthError {
	return &AuthError{Reason: r, detail: detail}
}

// Verifier checks webhook authenticity headers against a shared secret.
// now is injectable for tests; the zero Verifier uses time.Now.
type Verifier struct {
	Now func() time.Time
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify validates header ("t=<unix>,v1=<hex>") against the raw request
// body. It must be called on the exact bytes received, before any JSON
// decoding: the signed quantity is the byte string "{t}.{body}".
func (v *Verifier) Verify(header string, body []byte, secret string, tolerance time.Duration) error {
	if secret == "" {
		return authErr(ReasonMissingSecret, "webhook secret is not configured")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ts, tag, err := parseHeader(header)
	if err != nil {
		return err
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > tolerance {
		return authErr(ReasonStaleTimestamp, fmt.Sprintf("timestamp %d outside tolerance %s", ts, tolerance))
	}

	expected := ComputeTag(secret, ts, body)
	// hmac.Equal is constant-time over the compared bytes; a length mismatch
	// fails immediately without leaking a position-dependent timing signal.
	if !hmac.Equal([]byte(expected), []byte(tag)) {
		return authErr(ReasonBadSignature, "")
	}
	return nil
}

// ComputeTag returns hex(HMAC-SHA256(secret, "{t}.{body}")), lowercase.
func ComputeTag(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseHeader splits the comma-separated "k=v" list and requires both the
// "t" and "v1" keys. Unknown keys (e.g. "v0") are ignored.
func parseHeader(header string) (ts int64, tag string, err error) {
	if header == "" {
		return 0, "", authErr(ReasonMalformedHeader, "empty signature header")
	}
	var tsRaw string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			tsRaw = v
		case "v1":
			tag = v
		}
	}
	if tsRaw == "" || tag == "" {
		return 0, "", authErr(ReasonMalformedHeader, "missing t or v1 element")
	}
	ts, err = strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return 0, "", authErr(ReasonMalformedHeader, "non-numeric timestamp")
	}
	return ts, strings.ToLower(tag), nil
}
