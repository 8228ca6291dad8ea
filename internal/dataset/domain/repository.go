package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListDatasetFilter struct {
	Search   string
	Category string
	Uploader string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, dataset *Dataset) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dataset, error)
	List(ctx context.Context, db *gorm.DB, filter ListDatasetFilter, sort SortOrder, offset, limit int) ([]*Dataset, error)
	IncrementDownloads(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountByCategory(ctx context.Context, db *gorm.DB) ([]CategorySummary, error)
}
