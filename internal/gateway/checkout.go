package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/dataverse/internal/gateway/domain"
)

// CheckoutFunc adapts a function to domain.CheckoutOpener.
type CheckoutFunc func(ctx context.Context, order domain.Order) (*domain.CheckoutResult, error)

func (f CheckoutFunc) Open(ctx context.Context, order domain.Order) (*domain.CheckoutResult, error) {
	return f(ctx, order)
}

// CompletedCheckout replays a checkout the browser already finished.
type CompletedCheckout struct {
	Result domain.CheckoutResult
}

func (c CompletedCheckout) Open(_ context.Context, order domain.Order) (*domain.CheckoutResult, error) {
	result := domain.CheckoutResult{
		PaymentID: strings.TrimSpace(c.Result.PaymentID),
		OrderID:   strings.TrimSpace(c.Result.OrderID),
		Signature: strings.TrimSpace(c.Result.Signature),
	}
	if result.PaymentID == "" {
		return nil, fmt.Errorf("%w: missing payment id", domain.ErrPaymentFailed)
	}
	if result.OrderID != order.ID {
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, domain.ErrOrderMismatch)
	}
	return &result, nil
}
