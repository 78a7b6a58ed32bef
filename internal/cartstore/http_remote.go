package cartstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnauthenticated is returned when the Cart API rejects the caller or no
// token is configured.
var ErrUnauthenticated = errors.New("cart api: not authenticated")

// HTTPRemote talks to the storefront Cart API with a bearer token.
type HTTPRemote struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRemote(baseURL, token string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type itemRequest struct {
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type itemsEnvelope struct {
	Items []domain.CartItem `json:"items"`
}

func (r *HTTPRemote) Fetch(ctx context.Context) ([]domain.CartItem, error) {
	var out itemsEnvelope
	if err := r.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (r *HTTPRemote) Add(ctx context.Context, productID string, quantity int) error {
	return r.do(ctx, http.MethodPost, "/api/cart", itemRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (r *HTTPRemote) Update(ctx context.Context, productID string, quantity int) error {
	return r.do(ctx, http.MethodPatch, "/api/cart", itemRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (r *HTTPRemote) Remove(ctx context.Context, productID string) error {
	return r.do(ctx, http.MethodDelete, "/api/cart", itemRequest{ProductID: productID}, nil)
}

func (r *HTTPRemote) Clear(ctx context.Context) error {
	return r.do(ctx, http.MethodDelete, "/api/cart", nil, nil)
}

func (r *HTTPRemote) Push(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error) {
	var out itemsEnvelope
	if err := r.do(ctx, http.MethodPost, "/api/cart/sync", itemsEnvelope{Items: items}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	if r.token == "" {
		return ErrUnauthenticated
	}

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("cart api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cart api %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode cart api response: %w", err)
	}
	return nil
}
