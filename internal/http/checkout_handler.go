package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
)

const maxWebhookBody = 64 << 10

type OrderIntake interface {
	CreateOrder(ctx context.Context, owner domain.Owner, req intake.Request) (string, error)
}

type SessionBroker interface {
	CreateSession(ctx context.Context, owner domain.Owner, in payment.SessionInput) (*payment.Session, error)
}

type Settler interface {
	Settle(ctx context.Context, c *payment.Confirmation) (*settlement.Result, error)
}

// PaymentEvents is the part of the processor the callbacks need.
type PaymentEvents interface {
	RetrieveSession(ctx context.Context, reference string) (*payment.Confirmation, error)
	ParseEvent(payload []byte, signature string) (*payment.Confirmation, error)
}

type CheckoutHandler struct {
	intake  OrderIntake
	broker  SessionBroker
	settler Settler
	events  PaymentEvents
	timeout time.Duration
	log     *slog.Logger
}

func NewCheckoutHandler(in OrderIntake, broker SessionBroker, settler Settler, events PaymentEvents, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{intake: in, broker: broker, settler: settler, events: events, timeout: timeout, log: log}
}

// ownerFor picks the signed-in customer, or a guest identified by the
// shipping contact.
func ownerFor(ctx context.Context, addr domain.ShippingAddress) domain.Owner {
	if p, ok := principalFrom(ctx); ok {
		return domain.RegisteredOwner{UserID: p.UserID(), Email: p.Email}
	}
	return domain.NewGuestOwner(addr.Name, addr.Email)
}

func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req intake.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.intake.CreateOrder(ctx, ownerFor(ctx, req.ShippingAddress), req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"orderId": id})
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in payment.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s, err := h.broker.CreateSession(ctx, ownerFor(ctx, in.ShippingAddress), in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

type settlementResponseDTO struct {
	Status  string        `json:"status"`
	Outcome string        `json:"outcome"`
	Order   *domain.Order `json:"order,omitempty"`
}

// Success is the browser's return from the hosted payment page. It pulls the
// session and runs the same reconciliation as the webhook.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ref := r.URL.Query().Get("session_id")
	if ref == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	c, err := h.events.RetrieveSession(ctx, ref)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	res, err := h.settler.Settle(ctx, c)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if res.Outcome == settlement.OutcomeNotPaid {
		respondJSON(w, http.StatusAccepted, settlementResponseDTO{Status: "pending", Outcome: string(res.Outcome)})
		return
	}
	respondJSON(w, http.StatusOK, settlementResponseDTO{Status: "paid", Outcome: string(res.Outcome), Order: res.Order})
}

// Webhook accepts signed processor deliveries. Unverifiable payloads are
// rejected before anything is read from them.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	c, err := h.events.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrUnhandledEvent):
		respondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	case err != nil:
		h.log.WarnContext(r.Context(), "rejected webhook", "error", err)
		respondError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	res, err := h.settler.Settle(ctx, c)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(ctx, "webhook processed", "reference", c.Reference, "outcome", res.Outcome)
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
