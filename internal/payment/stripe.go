package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the Stripe API endpoint, used against local fakes.
	APIURL     string
	Timeout    time.Duration
	MaxRetries int64
	Breaker    circuitbreaker.Config
}

type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	createCB      *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	log           *slog.Logger
}

func NewStripeProcessor(cfg StripeConfig, log *slog.Logger) *StripeProcessor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsSuccessful = func(err error) bool {
		var se *CheckoutSessionError
		return errors.As(err, &se) && se.Kind != KindUpstreamUnavailable
	}

	return &StripeProcessor{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		createCB:      circuitbreaker.New[*stripe.CheckoutSession]("stripe-checkout", breakerCfg, log),
		log:           log.With("component", "stripe"),
	}
}

func (p *StripeProcessor) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if len(l.Images) > 0 {
			product.Images = stripe.StringSlice(l.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.createCB.Execute(func() (*stripe.CheckoutSession, error) {
		s, err := p.api.CheckoutSessions.New(params)
		if err != nil {
			return nil, classify(err)
		}
		return s, nil
	})
	if circuitbreaker.IsOpen(err) {
		return nil, &CheckoutSessionError{Kind: KindUpstreamUnavailable, Message: "payment processor temporarily unavailable", Err: err}
	}
	if err != nil {
		return nil, err
	}
	if s.URL == "" {
		return nil, &CheckoutSessionError{Kind: KindUpstreamUnavailable, Message: "session created without a redirect url"}
	}
	return &Session{Reference: s.ID, RedirectURL: s.URL}, nil
}

func (p *StripeProcessor) RetrieveSession(ctx context.Context, reference string) (*Confirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(reference, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("retrieve session %s: %w", reference, classify(err))
	}
	return confirmationFrom(s), nil
}

// ParseEvent verifies the Stripe-Signature header and extracts the session
// from checkout completion events. Other event types yield ErrUnhandledEvent.
func (p *StripeProcessor) ParseEvent(payload []byte, signature string) (*Confirmation, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, evt.Type)
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return confirmationFrom(&s), nil
}

func confirmationFrom(s *stripe.CheckoutSession) *Confirmation {
	c := &Confirmation{
		Reference:     s.ID,
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
		CustomerEmail: s.CustomerEmail,
	}
	if s.CustomerDetails != nil {
		if c.CustomerEmail == "" {
			c.CustomerEmail = s.CustomerDetails.Email
		}
		c.CustomerName = s.CustomerDetails.Name
	}
	return c
}

func classify(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &CheckoutSessionError{Kind: KindUpstreamUnavailable, Message: err.Error(), Err: err}
	}
	kind := KindUpstreamUnavailable
	switch {
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		kind = KindAuthFailure
	case se.Type == stripe.ErrorTypeInvalidRequest || se.Type == stripe.ErrorTypeCard:
		kind = KindInvalidRequest
	}
	return &CheckoutSessionError{Kind: kind, Message: se.Msg, Err: err}
}
