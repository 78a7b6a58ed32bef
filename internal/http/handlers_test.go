package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	cart    *mockCart
	intake  *mockIntake
	broker  *mockBroker
	settler *mockSettler
	events  *mockEvents
	orders  *mockOrders
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	log := logger.Discard()
	s := &testServer{
		cart:    &mockCart{items: []domain.CartItem{{ProductID: "p-1", Name: "Tee", UnitPrice: decimal.NewFromInt(20), Quantity: 2}}},
		intake:  &mockIntake{},
		broker:  &mockBroker{},
		settler: &mockSettler{},
		events:  &mockEvents{sessions: map[string]*payment.Confirmation{}},
		orders:  &mockOrders{orders: map[string]*domain.Order{}},
	}
	s.handler = NewRouter(
		RouterConfig{JWTSecret: testSecret, RequestTimeout: 5 * time.Second, RateLimiter: limiter, Log: log},
		NewCartHandler(s.cart, 5*time.Second, log),
		NewCheckoutHandler(s.intake, s.broker, s.settler, s.events, 5*time.Second, log),
		NewOrdersHandler(s.orders, 5*time.Second, log),
	)
	return s
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := IssueToken(testSecret, userID, userID+"@example.com", "Jane", "USER", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCart_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := IssueToken("other-secret", "u-1", "", "", "", time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/cart", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_GetCart(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/cart", token(t, "u-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.TotalItems)
	assert.Equal(t, "40.00", resp.TotalPrice)
}

func TestCart_AddItem(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/cart", token(t, "u-1"), map[string]any{"productId": "p-1", "quantity": 3})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []cartCall{{"add", "u-1", "p-1", 3}}, s.cart.calls)
}

func TestCart_AddItemValidation(t *testing.T) {
	s := newTestServer(t, nil)
	tok := token(t, "u-1")

	rec := s.do(t, http.MethodPost, "/api/cart", tok, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_product_id", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/cart", tok, map[string]any{"productId": "p-1", "quantity": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+tok)
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	assert.Empty(t, s.cart.calls)
}

func TestCart_InsufficientStock(t *testing.T) {
	s := newTestServer(t, nil)
	s.cart.err = cart.ErrInsufficientStock

	rec := s.do(t, http.MethodPost, "/api/cart", token(t, "u-1"), map[string]any{"productId": "p-1", "quantity": 3})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Insufficient stock", decodeError(t, rec).Error)
}

func TestCart_UpdateToZeroAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	tok := token(t, "u-1")

	rec := s.do(t, http.MethodPatch, "/api/cart", tok, map[string]any{"productId": "p-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cart", tok, map[string]any{"productId": "p-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cart", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []cartCall{
		{"update", "u-1", "p-1", 0},
		{"remove", "u-1", "p-1", 0},
		{"clear", "u-1", "", 0},
	}, s.cart.calls)
}

func TestCart_SyncLocalWins(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/cart/sync", token(t, "u-1"), map[string]any{
		"items": []domain.CartItem{
			{ProductID: "p-1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
			{ProductID: "p-9", Quantity: 4, UnitPrice: decimal.NewFromInt(5)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 1, resp.Items[0].Quantity, "client quantity wins")
}

func TestCheckout_CreateOrderAsGuest(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/checkout/orders", "", map[string]any{
		"items":           []map[string]any{{"productId": "p-1", "quantity": 1, "price": "20"}},
		"shippingAddress": map[string]string{"name": "Jane", "email": "Jane@Example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "order-1", resp["orderId"])

	guest, ok := s.intake.owner.(domain.GuestOwner)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", guest.Email)
}

func TestCheckout_CreateOrderAsRegistered(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/checkout/orders", token(t, "u-7"), map[string]any{
		"items": []map[string]any{{"productId": "p-1", "quantity": 1, "price": "20"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.RegisteredOwner{UserID: "u-7", Email: "u-7@example.com"}, s.intake.owner)
}

func TestCheckout_CreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", intake.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{"missing product", &intake.ProductNotFoundError{Missing: []string{"p-x"}}, http.StatusBadRequest, "product_not_found"},
		{"unknown owner", intake.ErrUnknownOwner, http.StatusUnauthorized, "unauthorized"},
		{"database", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.intake.err = tt.err
			rec := s.do(t, http.MethodPost, "/api/checkout/orders", "", map[string]any{"items": []any{}})
			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, tt.code, e.Code)
			assert.NotContains(t, e.Error, "connection reset")
		})
	}
}

func TestCheckout_CreateSession(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/checkout/sessions", "", map[string]any{"orderId": "order-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "cs_1", resp["transactionReference"])
	assert.Equal(t, "https://pay.example.test/cs_1", resp["redirectUrl"])
}

func TestCheckout_CreateSessionProcessorErrors(t *testing.T) {
	tests := []struct {
		kind   payment.ErrorKind
		status int
	}{
		{payment.KindInvalidRequest, http.StatusBadRequest},
		{payment.KindAuthFailure, http.StatusBadGateway},
		{payment.KindUpstreamUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s := newTestServer(t, nil)
			s.broker.err = &payment.CheckoutSessionError{Kind: tt.kind, Message: "nope"}
			rec := s.do(t, http.MethodPost, "/api/checkout/sessions", "", map[string]any{"orderId": "order-1"})
			assert.Equal(t, tt.status, rec.Code)
			e := decodeError(t, rec)
			assert.Equal(t, "checkout_session_error", e.Code)
			assert.Equal(t, string(tt.kind), e.Details)
		})
	}
}

func TestCheckout_CreateSessionOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"someone else's order", repository.ErrOrderNotFound, http.StatusNotFound, "not_found"},
		{"already paid", fmt.Errorf("%w: PROCESSING", repository.ErrOrderNotPending), http.StatusConflict, "order_not_pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.broker.err = tt.err
			rec := s.do(t, http.MethodPost, "/api/checkout/sessions", "", map[string]any{"orderId": "order-1"})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCheckout_SuccessPageAmountMismatch(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.sessions["cs_short"] = &payment.Confirmation{Reference: "cs_short", Paid: true, AmountTotal: 1}
	s.settler.err = fmt.Errorf("%w: paid 1, expected 9800", settlement.ErrAmountMismatch)

	rec := s.do(t, http.MethodGet, "/api/checkout/success?session_id=cs_short", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "amount_mismatch", decodeError(t, rec).Code)
}

func TestCheckout_SuccessPage(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.sessions["cs_paid"] = &payment.Confirmation{Reference: "cs_paid", Paid: true}
	s.settler.res = &settlement.Result{Outcome: settlement.OutcomeSettled, Order: &domain.Order{ID: "order-1", Status: domain.OrderStatusProcessing}}

	rec := s.do(t, http.MethodGet, "/api/checkout/success?session_id=cs_paid", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp settlementResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "paid", resp.Status)
	assert.Equal(t, "order-1", resp.Order.ID)
	require.Len(t, s.settler.calls, 1)
	assert.Equal(t, "cs_paid", s.settler.calls[0].Reference)
}

func TestCheckout_SuccessPageNotPaidYet(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.sessions["cs_open"] = &payment.Confirmation{Reference: "cs_open"}
	s.settler.res = &settlement.Result{Outcome: settlement.OutcomeNotPaid}

	rec := s.do(t, http.MethodGet, "/api/checkout/success?session_id=cs_open", "", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCheckout_SuccessPageErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/checkout/success", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/checkout/success?session_id=cs_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.settler.calls)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.parseErr = payment.ErrInvalidSignature

	rec := s.do(t, http.MethodPost, "/api/webhooks/payments", "", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.settler.calls)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.parseErr = payment.ErrUnhandledEvent

	rec := s.do(t, http.MethodPost, "/api/webhooks/payments", "", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.settler.calls)
}

func TestWebhook_Settles(t *testing.T) {
	s := newTestServer(t, nil)
	s.events.parsed = &payment.Confirmation{Reference: "cs_1", Paid: true}
	s.settler.res = &settlement.Result{Outcome: settlement.OutcomeAlreadySettled}

	rec := s.do(t, http.MethodPost, "/api/webhooks/payments", "", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.settler.calls, 1)

	s.settler.err = errors.New("db down")
	rec = s.do(t, http.MethodPost, "/api/webhooks/payments", "", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "processor should retry transient failures")
}

func TestOrders_OwnerOnly(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.orders["order-1"] = &domain.Order{ID: "order-1", OwnerID: "u-1"}

	rec := s.do(t, http.MethodGet, "/api/orders/order-1", token(t, "u-1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/order-1", token(t, "u-2"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders", token(t, "u-2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Orders)
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	s := newTestServer(t, nil)
	s.orders.notifications = []domain.Notification{
		{ID: "n-1", UserID: "u-1", Title: "Order Confirmed"},
		{ID: "n-2", UserID: "u-1", Title: "Order Confirmed", Read: true},
		{ID: "n-3", UserID: "u-2", Title: "Order Confirmed"},
	}
	tok := token(t, "u-1")

	rec := s.do(t, http.MethodGet, "/api/notifications", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notifications []domain.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 1, resp.Unread)

	rec = s.do(t, http.MethodPost, "/api/notifications/n-1/read", tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/notifications/n-3/read", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"n-1"}, s.orders.marked)

	rec = s.do(t, http.MethodGet, "/api/notifications?limit=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t, NewRateLimiter(1, 2))

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiter_Prune(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Now()
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))

	l.Prune(now.Add(time.Hour))
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Hour)))
}
