package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps service errors onto HTTP responses. Anything unrecognised
// is logged and reported as a 500 without leaking details.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		notFound *intake.ProductNotFoundError
		checkout *payment.CheckoutSessionError
	)
	switch {
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "product not found", Code: "product_not_found", Details: notFound.Missing})
	case errors.As(err, &checkout):
		status := http.StatusBadGateway
		switch checkout.Kind {
		case payment.KindInvalidRequest:
			status = http.StatusBadRequest
		case payment.KindUpstreamUnavailable:
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, ErrorResponse{Error: "payment session could not be created", Code: "checkout_session_error", Details: string(checkout.Kind)})
	case errors.Is(err, intake.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, intake.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, intake.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid_price", err.Error())
	case errors.Is(err, intake.ErrUnknownOwner):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, payment.ErrMissingOrderID):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, cart.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", "Insufficient stock")
	case errors.Is(err, cart.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, payment.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrOrderNotPending):
		respondError(w, http.StatusConflict, "order_not_pending", "order is no longer awaiting payment")
	case errors.Is(err, repository.ErrNotificationNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, settlement.ErrUnrecoverable):
		log.ErrorContext(r.Context(), "paid session could not be settled", "error", err)
		respondError(w, http.StatusBadRequest, "unrecoverable", "payment could not be matched to an order")
	case errors.Is(err, settlement.ErrAmountMismatch):
		respondError(w, http.StatusConflict, "amount_mismatch", "paid amount does not match the order total")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
