package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Purchase, error)
	FindByReference(ctx context.Context, db *gorm.DB, method PaymentMethod, reference string) (*Purchase, error)
	FindConfirmed(ctx context.Context, db *gorm.DB, datasetID snowflake.ID, buyer string) (*Purchase, error)
	ListByBuyer(ctx context.Context, db *gorm.DB, buyer string, limit int) ([]*Purchase, error)
}
