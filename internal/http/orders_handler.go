package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/go-chi/chi/v5"
)

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

type OrdersHandler struct {
	store   OrderStore
	timeout time.Duration
	log     *slog.Logger
}

func NewOrdersHandler(store OrderStore, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{store: store, timeout: timeout, log: log}
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	orders, err := h.store.ListOrdersByUser(ctx, p.UserID())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetOrder only shows customers their own orders; anything else is a 404.
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	o, err := h.store.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if o.OwnerID != p.UserID() {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 200 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	list, err := h.store.ListNotifications(ctx, p.UserID(), limit)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": list, "unread": unread})
}

func (h *OrdersHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	if err := h.store.MarkNotificationRead(ctx, chi.URLParam(r, "id"), p.UserID()); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
