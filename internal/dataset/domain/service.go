package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dataverse/pkg/db/pagination"
)

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortPopular   SortOrder = "popular"
)

// ParseSortOrder returns SortNewest for empty input.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(value) {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceLow, SortPriceHigh, SortPopular:
		return SortOrder(value), nil
	default:
		return "", ErrInvalidSort
	}
}

// CategoryAll disables category filtering.
const CategoryAll = "all"

type CreateDatasetRequest struct {
	UploaderAddress string
	Name            string
	Description     string
	Category        string
	Tags            []string
	Price           string
	Currency        string
	PreviewImageCID string
	FileName        string
	FileType        string
	FileSize        int64
	File            io.Reader
}

type ListDatasetRequest struct {
	Search    string
	Category  string
	Sort      string
	PageToken string
	PageSize  int
}

type ListDatasetResponse struct {
	pagination.PageInfo
	Datasets []Dataset `json:"datasets"`
}

type Service interface {
	Create(context.Context, CreateDatasetRequest) (Dataset, error)
	List(context.Context, ListDatasetRequest) (ListDatasetResponse, error)
	GetByID(context.Context, string) (Dataset, error)
	Get(context.Context, snowflake.ID) (Dataset, error)
	ListByUploader(context.Context, string) ([]Dataset, error)
	IncrementDownloads(context.Context, snowflake.ID) error
	Categories(context.Context) ([]CategorySummary, error)
}

var (
	ErrInvalidUploader    = errors.New("invalid_uploader_address")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidFile        = errors.New("invalid_file")
	ErrInvalidFileType    = errors.New("invalid_file_type")
	ErrFileTooLarge       = errors.New("file_too_large")
	ErrInvalidContent     = errors.New("invalid_file_content")
	ErrInvalidSort        = errors.New("invalid_sort")
	ErrInvalidPreviewCID  = errors.New("invalid_preview_image_cid")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
)
