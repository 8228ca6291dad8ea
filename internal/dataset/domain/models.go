package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SchemaField describes one column of a dataset file.
type SchemaField struct {
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

const (
	FieldTypeString  = "string"
	FieldTypeFloat   = "float"
	FieldTypeDate    = "date"
	FieldTypeBoolean = "boolean"
)

type Dataset struct {
	ID              snowflake.ID                     `gorm:"primaryKey" json:"id"`
	Name            string                           `gorm:"not null" json:"name"`
	Slug            string                           `gorm:"not null" json:"slug"`
	Description     string                           `gorm:"not null" json:"description"`
	Category        string                           `gorm:"not null;index" json:"category"`
	Tags            datatypes.JSONSlice[string]      `gorm:"type:jsonb;not null" json:"tags"`
	Price           decimal.Decimal                  `gorm:"type:numeric(36,18);not null" json:"price"`
	Currency        string                           `gorm:"not null" json:"currency"`
	UploaderAddress string                           `gorm:"not null;index" json:"uploader_address"`
	ContentID       string                           `gorm:"column:content_id;not null" json:"content_id"`
	PreviewImageCID *string                          `gorm:"column:preview_image_cid" json:"preview_image_cid,omitempty"`
	Schema          datatypes.JSONSlice[SchemaField] `gorm:"type:jsonb;not null" json:"schema"`
	Preview         datatypes.JSON                   `gorm:"type:jsonb;not null" json:"preview"`
	FileName        string                           `json:"file_name"`
	FileSize        int64                            `json:"file_size"`
	FileType        string                           `json:"file_type"`
	Downloads       int64                            `gorm:"not null;default:0" json:"downloads"`
	CreatedAt       time.Time                        `gorm:"not null" json:"created_at"`
}

// CategorySummary counts listed datasets per category.
type CategorySummary struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
