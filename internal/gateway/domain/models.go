package domain

import (
	"time"
)

const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"

	PaymentStatusCaptured   = "captured"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusFailed     = "failed"
)

// OrderRequest asks for a gateway order. Amount is in minor units (paise for INR).
type OrderRequest struct {
	Amount       int64
	Currency     string
	DatasetID    string
	DatasetName  string
	BuyerAddress string
}

// Order is a gateway order. Verified is false for locally fabricated orders.
type Order struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Verified  bool      `json:"-"`
}

// CheckoutResult is what the hosted checkout hands back on success.
type CheckoutResult struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// Payment is the gateway's view of a payment.
type Payment struct {
	ID       string
	OrderID  string
	Status   string
	Amount   int64
	Currency string
	Method   string
}

// Captured reports whether funds were captured.
func (p *Payment) Captured() bool {
	return p != nil && p.Status == PaymentStatusCaptured
}

// Completed is the outcome of a successful gateway session.
type Completed struct {
	OrderID   string
	PaymentID string
	Signature string
	Amount    int64
	Currency  string
	Verified  bool
}
