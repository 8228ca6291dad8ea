package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCrypto  PaymentMethod = "crypto"
	MethodGateway PaymentMethod = "gateway"
)

// ParsePaymentMethod accepts the stored method names.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(value) {
	case MethodCrypto, MethodGateway:
		return PaymentMethod(value), nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Purchase is append-only. Entitlement exists while a confirmed row exists for (dataset, buyer).
type Purchase struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	DatasetID     snowflake.ID    `gorm:"not null;index" json:"dataset_id"`
	BuyerAddress  string          `gorm:"not null" json:"buyer_address"`
	PaymentMethod PaymentMethod   `gorm:"not null" json:"payment_method"`
	TxReference   string          `gorm:"not null" json:"tx_reference"`
	OrderID       *string         `json:"order_id,omitempty"`
	Confirmed     bool            `gorm:"not null" json:"confirmed"`
	Verified      bool            `gorm:"not null" json:"verified"`
	Amount        decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"amount"`
	Currency      string          `gorm:"not null" json:"currency"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}
