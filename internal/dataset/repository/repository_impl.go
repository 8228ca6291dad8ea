package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dataverse/internal/dataset/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const datasetColumns = `id, name, slug, description, category, tags, price, currency, uploader_address,
	content_id, preview_image_cid, schema, preview, file_name, file_size, file_type, downloads, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, dataset *domain.Dataset) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO datasets (`+datasetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dataset.ID,
		dataset.Name,
		dataset.Slug,
		dataset.Description,
		dataset.Category,
		dataset.Tags,
		dataset.Price,
		dataset.Currency,
		dataset.UploaderAddress,
		dataset.ContentID,
		dataset.PreviewImageCID,
		dataset.Schema,
		dataset.Preview,
		dataset.FileName,
		dataset.FileSize,
		dataset.FileType,
		dataset.Downloads,
		dataset.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Dataset, error) {
	var dataset domain.Dataset
	err := db.WithContext(ctx).Raw(
		`SELECT `+datasetColumns+` FROM datasets WHERE id = ?`,
		id,
	).Scan(&dataset).Error
	if err != nil {
		return nil, err
	}
	if dataset.ID == 0 {
		return nil, nil
	}
	return &dataset, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListDatasetFilter, sort domain.SortOrder, offset, limit int) ([]*domain.Dataset, error) {
	var datasets []*domain.Dataset
	stmt := db.WithContext(ctx).
		Table("datasets").
		Select(datasetColumns)

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		stmt = stmt.Where(
			`(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(CAST(tags AS TEXT)) LIKE ? ESCAPE '!')`,
			pattern, pattern, pattern,
		)
	}
	if category := strings.TrimSpace(filter.Category); category != "" && !strings.EqualFold(category, domain.CategoryAll) {
		stmt = stmt.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if uploader := strings.TrimSpace(filter.Uploader); uploader != "" {
		stmt = stmt.Where("uploader_address = ?", strings.ToLower(uploader))
	}

	err := stmt.
		Order(orderClause(sort)).
		Offset(offset).
		Limit(limit).
		Scan(&datasets).Error
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

// IncrementDownloads only ever adds one to the counter.
func (r *repo) IncrementDownloads(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE datasets SET downloads = downloads + 1 WHERE id = ?`,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) CountByCategory(ctx context.Context, db *gorm.DB) ([]domain.CategorySummary, error) {
	var rows []domain.CategorySummary
	err := db.WithContext(ctx).Raw(
		`SELECT category AS name, COUNT(*) AS count FROM datasets GROUP BY category ORDER BY category`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func orderClause(sort domain.SortOrder) string {
	switch sort {
	case domain.SortPriceLow:
		return "price ASC, id DESC"
	case domain.SortPriceHigh:
		return "price DESC, id DESC"
	case domain.SortPopular:
		return "downloads DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return replacer.Replace(value)
}
