package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/dataverse/internal/gateway/domain"
)

// Session runs one hosted-checkout payment: create the order, open the checkout, then verify the result.
type Session struct {
	Source   domain.OrderSource
	Checkout domain.CheckoutOpener
	// Secret verifies checkout signatures of verified orders.
	Secret string
	// Payments, when set, confirms the payment was captured.
	Payments domain.PaymentFetcher
}

func (s *Session) Pay(ctx context.Context, req domain.OrderRequest) (*domain.Completed, error) {
	if s.Source == nil || s.Checkout == nil {
		return nil, domain.ErrMissingCredentials
	}

	order, err := s.Source.CreateOrder(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrOrderCreationFailed) || errors.Is(err, domain.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}

	result, err := s.Checkout.Open(ctx, *order)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentCancelled) || errors.Is(err, domain.ErrPaymentFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}
	if result == nil || result.PaymentID == "" {
		return nil, fmt.Errorf("%w: checkout returned no payment", domain.ErrPaymentFailed)
	}

	if order.Verified {
		if s.Secret == "" {
			return nil, domain.ErrMissingCredentials
		}
		if !VerifySignature(s.Secret, order.ID, result.PaymentID, result.Signature) {
			return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, domain.ErrInvalidSignature)
		}
		if s.Payments != nil {
			payment, err := s.Payments.FetchPayment(ctx, result.PaymentID)
			if err != nil {
				return nil, err
			}
			if !payment.Captured() {
				return nil, fmt.Errorf("%w: %w: status %s", domain.ErrPaymentFailed, domain.ErrPaymentNotCaptured, payment.Status)
			}
			if payment.OrderID != "" && payment.OrderID != order.ID {
				return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, domain.ErrOrderMismatch)
			}
		}
	}

	return &domain.Completed{
		OrderID:   order.ID,
		PaymentID: result.PaymentID,
		Signature: result.Signature,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Verified:  order.Verified,
	}, nil
}
