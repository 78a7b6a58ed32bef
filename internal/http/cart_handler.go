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
)

type CartService interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	Merge(ctx context.Context, userID string, local []domain.CartItem) ([]domain.CartItem, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(svc CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{svc: svc, timeout: timeout, log: log}
}

type cartItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartResponseDTO struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice string            `json:"totalPrice"`
}

func cartResponse(items []domain.CartItem) cartResponseDTO {
	if items == nil {
		items = []domain.CartItem{}
	}
	return cartResponseDTO{
		Items:      items,
		TotalItems: domain.TotalItems(items),
		TotalPrice: domain.TotalPrice(items).StringFixed(2),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	items, err := h.svc.GetCart(ctx, p.UserID())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	var req cartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.svc.AddItem(ctx, p.UserID(), req.ProductID, req.Quantity); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, ctx, http.StatusCreated, p.UserID())
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	var req cartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := h.svc.UpdateQuantity(ctx, p.UserID(), req.ProductID, req.Quantity); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, ctx, http.StatusOK, p.UserID())
}

// Delete removes one line when a productId is given and clears the cart
// otherwise.
func (h *CartHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	var req cartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		req.ProductID = r.URL.Query().Get("productId")
	}

	var err error
	if req.ProductID != "" {
		err = h.svc.RemoveItem(ctx, p.UserID(), req.ProductID)
	} else {
		err = h.svc.ClearCart(ctx, p.UserID())
	}
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.respondCart(w, r, ctx, http.StatusOK, p.UserID())
}

// Sync merges the client replica into the server cart, client lines winning.
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	p, _ := principalFrom(ctx)

	var req struct {
		Items []domain.CartItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items, err := h.svc.Merge(ctx, p.UserID(), req.Items)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(items))
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, ctx context.Context, status int, userID string) {
	items, err := h.svc.GetCart(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, status, cartResponse(items))
}
