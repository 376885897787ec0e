package gateways

import (
	"context"
	"errors"
	"fmt"

	"billing-service/models"
)

// PaymentRequest is the gateway-neutral payment attempt. Each adapter maps it
// onto its own wire format; no gateway vocabulary leaks past this package.
type PaymentRequest struct {
	OrderID       string
	Amount        int // in cents
	Currency      string
	CustomerEmail string
	ProductID     string
	Description   string
}

// PaymentResult is the gateway-neutral outcome of an accepted attempt.
type PaymentResult struct {
	TransactionID string
	NativeStatus  string
	Status        models.OrderStatus
}

// PaymentGateway is the uniform interface over an external payment processor.
// GetPaymentStatus is a pure query and never mutates gateway-side state.
type PaymentGateway interface {
	Name() models.Gateway

	// CreatePayment submits a new payment attempt. A definitive refusal is
	// reported as ErrPaymentRejected (possibly wrapped); transport failures
	// as *TransportError.
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)

	// GetPaymentStatus returns the canonical status for a gateway transaction
	// id. An unrecognized native status yields models.StatusUnknown with a
	// nil error. A transaction the gateway cannot resolve yields
	// ErrTransactionNotFound; anything else network-shaped yields
	// *TransportError.
	GetPaymentStatus(ctx context.Context, transactionID string) (models.OrderStatus, error)
}

// ErrTransactionNotFound means the gateway answered and has no record of the
// transaction id. Distinct from a transport failure: here we did reach the
// gateway.
var ErrTransactionNotFound = errors.New("gateway: transaction not found")

// ErrPaymentRejected means the gateway definitively refused the payment
// attempt. It is terminal for that gateway and triggers the cascade.
var ErrPaymentRejected = errors.New("gateway: payment rejected")

// TransportError covers timeouts, connection failures, non-2xx responses and
// malformed bodies. Callers must never mutate order state on a TransportError.
type TransportError struct {
	Gateway    models.Gateway
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: gateway transport error (status %d): %v", e.Gateway, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: gateway transport error: %v", e.Gateway, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
