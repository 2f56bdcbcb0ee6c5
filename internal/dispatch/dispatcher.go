package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gyaneshwarpardhi/payrelay/internal/config"
	"github.com/gyaneshwarpardhi/payrelay/internal/event"
	"github.com/gyaneshwarpardhi/payrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/payrelay/internal/normalize"
	"github.com/gyaneshwarpardhi/payrelay/internal/notify"
	"github.com/gyaneshwarpardhi/payrelay/internal/signature"
)

// State is the terminal state a webhook request ends in.
type State string

const (
	// StateRejected — signature verification failed; nothing was dispatched.
	StateRejected State = "rejected"
	// StateBadPayload — signature valid but the body is not decodable JSON.
	StateBadPayload State = "bad_payload"
	// StateIgnored — event type outside the accepted set; success response
	// so the upstream does not retry-storm us.
	StateIgnored State = "ignored"
	// StateCompleted — all enabled channels settled (possibly zero).
	StateCompleted State = "completed"
)

// acceptedTypes is the payment-success filter. Everything else is ignored.
var acceptedTypes = map[string]struct{}{
	"checkout.session.completed": {},
	"payment_intent.succeeded":   {},
	"invoice.paid":               {},
	"invoice.payment_succeeded":  {},
}

// DeliveryResult is one channel's settled outcome.
type DeliveryResult struct {
	Channel  string `json:"channel"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration_ms"`
}

// Outcome summarizes one handled webhook.
type Outcome struct {
	State      State                `json:"state"`
	EventType  string               `json:"event_type,omitempty"`
	Record     *event.PaymentRecord `json:"-"`
	Deliveries []DeliveryResult     `json:"deliveries,omitempty"`
	// Err holds the auth or decode failure for logging. The HTTP layer must
	// not echo it back verbatim on auth failures.
	Err error `json:"-"`
}

// Coordinator walks each webhook through
// verify → decode → filter → normalize → fan-out.
type Coordinator struct {
	loader   *config.Loader
	registry *notify.Registry
	verifier *signature.Verifier
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// New builds a Coordinator. When dispatch.send_rate_per_sec is set, each
// channel gets its own limiter so one chatty channel cannot starve another.
func New(loader *config.Loader, registry *notify.Registry) *Coordinator {
	c := &Coordinator{
		loader:   loader,
		registry: registry,
		verifier: &signature.Verifier{},
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
	if rps := loader.Config().Dispatch.SendRatePerSec; rps > 0 {
		for _, name := range registry.Names() {
			c.limiters[name] = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
	return c
}

// Handle processes one raw webhook request. It always waits for every
// dispatched channel to settle before returning; individual delivery
// failures never fail the request.
func (c *Coordinator) Handle(ctx context.Context, sigHeader string, body []byte) *Outcome {
	cfg := c.loader.Config()

	tolerance := time.Duration(cfg.Webhook.ToleranceSeconds) * time.Second
	if err := c.verifier.Verify(sigHeader, body, cfg.Webhook.Secret, tolerance); err != nil {
		metrics.WebhooksRejected.Inc()
		return &Outcome{State: StateRejected, Err: err}
	}

	var raw event.RawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return &Outcome{State: StateBadPayload, Err: fmt.Errorf("decode event: %w", err)}
	}

	if _, ok := acceptedTypes[raw.Type]; !ok {
		metrics.WebhooksIgnored.Inc()
		return &Outcome{State: StateIgnored, EventType: raw.Type}
	}

	rec := normalize.Normalize(&raw, c.now())
	deliveries := c.fanOut(ctx, rec)
	metrics.WebhooksDispatched.Inc()

	return &Outcome{
		State:      StateCompleted,
		EventType:  raw.Type,
		Record:     rec,
		Deliveries: deliveries,
	}
}

// fanOut runs one goroutine per enabled channel over the shared read-only
// record and joins on all of them: a settle-all, not a fail-fast. With zero
// enabled channels it returns immediately.
func (c *Coordinator) fanOut(ctx context.Context, rec *event.PaymentRecord) []DeliveryResult {
	notifiers := c.registry.Enabled()
	results := make([]DeliveryResult, len(notifiers))
	if len(notifiers) == 0 {
		return results
	}

	dispatchID := uuid.New().String()
	start := time.Now()

	var wg sync.WaitGroup
	for i, n := range notifiers {
		wg.Add(1)
		go func(i int, n notify.Notifier) {
			defer wg.Done()
			results[i] = c.send(ctx, n, rec, dispatchID)
		}(i, n)
	}
	wg.Wait()

	metrics.DispatchDuration.Observe(float64(time.Since(start).Milliseconds()))
	return results
}

func (c *Coordinator) send(ctx context.Context, n notify.Notifier, rec *event.PaymentRecord, dispatchID string) DeliveryResult {
	res := DeliveryResult{Channel: n.Name()}
	start := time.Now()

	if lim := c.limiters[n.Name()]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return c.settle(res, start, dispatchID, rec, err)
		}
	}

	sendCtx := ctx
	if ms := c.loader.Config().Dispatch.SendTimeoutMs; ms > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	return c.settle(res, start, dispatchID, rec, n.Send(sendCtx, rec))
}

// settle records the outcome of one channel send: metrics, log line, result.
func (c *Coordinator) settle(res DeliveryResult, start time.Time, dispatchID string, rec *event.PaymentRecord, err error) DeliveryResult {
	res.Duration = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		metrics.Deliveries.WithLabelValues(res.Channel, "error").Inc()
		slog.Error("delivery failed",
			"dispatch_id", dispatchID,
			"channel", res.Channel,
			"order_no", rec.OrderNo,
			"err", err)
		return res
	}
	res.OK = true
	metrics.Deliveries.WithLabelValues(res.Channel, "success").Inc()
	slog.Info("delivered",
		"dispatch_id", dispatchID,
		"channel", res.Channel,
		"order_no", rec.OrderNo,
		"duration_ms", res.Duration)
	return res
}
