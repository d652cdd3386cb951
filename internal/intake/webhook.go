package intake

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
	"landed-bot/internal/storage"
)

const maxBodyBytes = 1 << 20

type Pricer interface {
	PriceOrder(ctx context.Context, req orders.OrderRequest) (storage.Order, bool, error)
	QuoteLines(ctx context.Context, lines []pricing.OrderLine) (pricing.Breakdown, error)
}

type Notifier interface {
	NotifyNewOrder(ctx context.Context, order storage.Order)
}

type WebhookHandler struct {
	pricer   Pricer
	notifier Notifier
	token    string
	logger   *zap.Logger
}

func NewWebhookHandler(pricer Pricer, notifier Notifier, token string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		pricer:   pricer,
		notifier: notifier,
		token:    token,
		logger:   logger,
	}
}

func (h *WebhookHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.authorized(h.HandleOrder))
	mux.HandleFunc("POST /quote", h.authorized(h.HandleQuote))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type orderPayload struct {
	ExternalRef string              `json:"external_ref"`
	Customer    string              `json:"customer"`
	Lines       []pricing.OrderLine `json:"lines"`
}

type quotePayload struct {
	Lines []pricing.OrderLine `json:"lines"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HandleOrder prices and stores a storefront order. Redelivery of an order
// with the same external_ref returns the stored order without notifying
// admins again.
func (h *WebhookHandler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	var payload orderPayload
	if !h.decode(w, r, &payload) {
		return
	}

	order, created, err := h.pricer.PriceOrder(r.Context(), orders.OrderRequest{
		ExternalRef: strings.TrimSpace(payload.ExternalRef),
		Customer:    payload.Customer,
		Lines:       payload.Lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Order received via webhook",
		zap.Int64("order_id", order.ID),
		zap.String("external_ref", order.ExternalRef),
		zap.Bool("created", created))

	if created && h.notifier != nil {
		go h.notifier.NotifyNewOrder(context.WithoutCancel(r.Context()), order)
	}

	writeJSON(w, http.StatusOK, order)
}

// HandleQuote prices lines without storing anything.
func (h *WebhookHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if !h.decode(w, r, &payload) {
		return
	}

	b, err := h.pricer.QuoteLines(r.Context(), payload.Lines)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *WebhookHandler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, err error) {
	var inputErr *pricing.InvalidInputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: inputErr.Reason, Field: inputErr.Field})
	case errors.Is(err, pricing.ErrCurrencyMismatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "all lines must share one currency"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		h.logger.Error("Webhook request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
