package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/payrelay/internal/event"
)

// Notifier is the uniform contract every delivery channel implements.
// Enabled is re-evaluated on each request against live configuration, so a
// config reload can flip channels without a restart. Send must never panic:
// any outbound failure comes back as a *DeliveryError for the coordinator
// to record.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, rec *event.PaymentRecord) error
}

// DeliveryError labels a failed send with its channel. It is logged by the
// coordinator and never reaches the upstream caller.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func deliveryErr(channel string, err error) *DeliveryError {
	return &DeliveryError{Channel: channel, Err: err}
}

// Registry holds the static set of channel adapters. It is safe for
// concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	notifiers []Notifier
	names     map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a notifier. Panics on duplicate name to surface
// misconfiguration early.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[n.Name()]; exists {
		panic(fmt.Sprintf("notify registry: duplicate channel %q", n.Name()))
	}
	r.names[n.Name()] = struct{}{}
	r.notifiers = append(r.notifiers, n)
}

// Enabled returns the notifiers whose required configuration is present,
// in registration order.
func (r *Registry) Enabled() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		if n.Enabled() {
			out = append(out, n)
		}
	}
	return out
}

// Names returns all registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		out = append(out, n.Name())
	}
	return out
}

// defaultClient is shared by adapters that are not handed one explicitly.
var defaultClient = &http.Client{Timeout: 10 * time.Second}

// doRequest performs the outbound call and fails fast on non-2xx. The body
// is drained so the transport can reuse the connection.
func doRequest(client *http.Client, req *http.Request) error {
	if client == nil {
		client = defaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, snippet)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
