package domain

import (
	"context"
	"errors"
	"time"
)

// OrderSource creates orders for the checkout.
type OrderSource interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// CheckoutOpener presents the hosted checkout for an order and waits for the buyer.
type CheckoutOpener interface {
	Open(ctx context.Context, order Order) (*CheckoutResult, error)
}

// PaymentFetcher reads gateway-side payment and order state.
type PaymentFetcher interface {
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// Adapter is a server-side gateway integration holding the API secret.
type Adapter interface {
	OrderSource
	PaymentFetcher
	Provider() string
	KeyID() string
	Secret() string
}

type AdapterConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

var (
	ErrOrderCreationFailed = errors.New("order_creation_failed")
	ErrPaymentCancelled    = errors.New("payment_cancelled")
	ErrPaymentFailed       = errors.New("payment_failed")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrPaymentNotCaptured  = errors.New("payment_not_captured")
	ErrOrderMismatch       = errors.New("order_mismatch")
	ErrMissingCredentials  = errors.New("missing_gateway_credentials")
	ErrInvalidConfig       = errors.New("invalid_gateway_config")
	ErrProviderNotFound    = errors.New("gateway_provider_not_found")
	ErrUpstream            = errors.New("gateway_upstream_error")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCurrency     = errors.New("invalid_currency")
)
