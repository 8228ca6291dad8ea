package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dataverse/internal/purchase/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const purchaseColumns = `id, dataset_id, buyer_address, payment_method, tx_reference, order_id,
	confirmed, verified, amount, currency, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, purchase *domain.Purchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO purchases (`+purchaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		purchase.ID,
		purchase.DatasetID,
		purchase.BuyerAddress,
		purchase.PaymentMethod,
		purchase.TxReference,
		purchase.OrderID,
		purchase.Confirmed,
		purchase.Verified,
		purchase.Amount,
		purchase.Currency,
		purchase.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Purchase, error) {
	return r.findOne(ctx, db, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, id)
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, method domain.PaymentMethod, reference string) (*domain.Purchase, error) {
	return r.findOne(ctx, db,
		`SELECT `+purchaseColumns+` FROM purchases WHERE payment_method = ? AND tx_reference = ?`,
		method, reference,
	)
}

func (r *repo) FindConfirmed(ctx context.Context, db *gorm.DB, datasetID snowflake.ID, buyer string) (*domain.Purchase, error) {
	return r.findOne(ctx, db,
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE dataset_id = ? AND buyer_address = ? AND confirmed = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		datasetID, buyer, true,
	)
}

func (r *repo) ListByBuyer(ctx context.Context, db *gorm.DB, buyer string, limit int) ([]*domain.Purchase, error) {
	var purchases []*domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM purchases
		 WHERE buyer_address = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		buyer, limit,
	).Scan(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Purchase, error) {
	var purchase domain.Purchase
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&purchase).Error; err != nil {
		return nil, err
	}
	if purchase.ID == 0 {
		return nil, nil
	}
	return &purchase, nil
}
