package api

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/payrelay/internal/dispatch"
	"github.com/gyaneshwarpardhi/payrelay/internal/metrics"
)

// maxBodyBytes caps inbound webhook payloads; upstream events are a few KB.
const maxBodyBytes = 1 << 20

// signatureHeader carries the authenticity tag of the payment processor.
const signatureHeader = "Stripe-Signature"

// Handler holds all HTTP handler dependencies.
type Handler struct {
	coord *dispatch.Coordinator
	mux   *http.ServeMux
}

// New creates an HTTP handler and registers all routes. Unmatched paths and
// methods fall through to the mux's 404.
func New(coord *dispatch.Coordinator) http.Handler {
	h := &Handler{coord: coord, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /stripe-webhook", h.webhook)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /stripe-webhook — verify, normalize, fan out.
//
// The caller only ever sees 400 (authentication or payload failure) or 200;
// downstream delivery failures are an operator concern, visible in logs and
// metrics only.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	metrics.WebhooksReceived.Inc()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	outcome := h.coord.Handle(r.Context(), r.Header.Get(signatureHeader), body)
	switch outcome.State {
	case dispatch.StateRejected:
		// One generic message for every verification failure; the specific
		// reason is logged, never echoed, to avoid handing forgers an oracle.
		writeError(w, http.StatusBadRequest, "invalid signature")
	case dispatch.StateBadPayload:
		writeError(w, http.StatusBadRequest, "invalid payload")
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"state":  outcome.State,
		})
	}
}

// GET /health — always 200 (liveness probe).
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
