// Package payment creates hosted payment sessions and turns processor
// callbacks into settlement confirmations.
package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("payment event signature verification failed")
	ErrUnhandledEvent   = errors.New("payment event type is not handled")
	ErrSessionNotFound  = errors.New("payment session not found")
)

type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid-request"
	KindAuthFailure         ErrorKind = "auth-failure"
	KindUpstreamUnavailable ErrorKind = "upstream-unavailable"
)

// CheckoutSessionError is a processor rejection. The order it was created
// for stays PENDING and the call can be retried.
type CheckoutSessionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CheckoutSessionError) Error() string {
	return fmt.Sprintf("checkout session %s: %s", e.Kind, e.Message)
}

func (e *CheckoutSessionError) Unwrap() error { return e.Err }

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	Images     []string
}

type SessionRequest struct {
	Lines         []LineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type Session struct {
	Reference   string `json:"transactionReference"`
	RedirectURL string `json:"redirectUrl"`
}

// Confirmation is what the processor reports about a session, whether pushed
// by webhook or pulled on the success page.
type Confirmation struct {
	Reference     string
	Paid          bool
	AmountTotal   int64 // minor units actually charged
	Metadata      map[string]string
	CustomerEmail string
	CustomerName  string
}

type Processor interface {
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, reference string) (*Confirmation, error)
	ParseEvent(payload []byte, signature string) (*Confirmation, error)
}
