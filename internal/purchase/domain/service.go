package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RecordPurchaseRequest struct {
	DatasetID    snowflake.ID
	BuyerAddress string
	Method       PaymentMethod
	TxReference  string
	OrderID      string
	Confirmed    bool
	Verified     bool
	Amount       decimal.Decimal
	Currency     string
}

type Service interface {
	// Record inserts a purchase. A replayed (method, reference) returns the stored row with ErrAlreadyRecorded.
	Record(context.Context, RecordPurchaseRequest) (Purchase, error)
	GetByID(context.Context, string) (Purchase, error)
	HasPurchased(ctx context.Context, datasetID snowflake.ID, buyer string) (bool, error)
	FindConfirmed(ctx context.Context, datasetID snowflake.ID, buyer string) (*Purchase, error)
	ListByBuyer(ctx context.Context, buyer string) ([]Purchase, error)
}

var (
	ErrInvalidDataset       = errors.New("invalid_dataset_id")
	ErrInvalidBuyer         = errors.New("invalid_buyer_address")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidReference     = errors.New("invalid_tx_reference")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidID            = errors.New("invalid_id")
	ErrAlreadyRecorded      = errors.New("purchase_already_recorded")
	ErrNotFound             = errors.New("not_found")
)
