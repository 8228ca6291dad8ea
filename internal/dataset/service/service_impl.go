package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/config"
	"github.com/smallbiznis/dataverse/internal/contentstore"
	"github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/pkg/db/pagination"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentUploader stores dataset files and returns their content identifier.
type ContentUploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Content     ContentUploader
	Marketplace *config.MarketplaceConfigHolder
	Clock       clock.Clock        `optional:"true"`
	Metrics     *telemetry.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	content     ContentUploader
	marketplace *config.MarketplaceConfigHolder
	clock       clock.Clock
	metrics     *telemetry.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("dataset.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		content:     p.Content,
		marketplace: p.Marketplace,
		clock:       clk,
		metrics:     p.Metrics,
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3,5}$`)

const uploaderListLimit = 500

func (s *Service) Create(ctx context.Context, req domain.CreateDatasetRequest) (domain.Dataset, error) {
	rules := s.marketplace.Get()

	uploader := strings.TrimSpace(req.UploaderAddress)
	if !common.IsHexAddress(uploader) {
		return domain.Dataset{}, domain.ErrInvalidUploader
	}

	if req.File == nil || strings.TrimSpace(req.FileName) == "" {
		return domain.Dataset{}, domain.ErrInvalidFile
	}
	fileType := normalizeFileType(req.FileType, req.FileName)
	if !rules.AllowsFileType(fileType) {
		s.metrics.RecordUpload(fileType, "rejected", 0)
		return domain.Dataset{}, domain.ErrInvalidFileType
	}
	if req.FileSize > rules.MaxUploadBytes {
		s.metrics.RecordUpload(fileType, "rejected", 0)
		return domain.Dataset{}, domain.ErrFileTooLarge
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Dataset{}, domain.ErrInvalidName
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Dataset{}, domain.ErrInvalidDescription
	}
	category, ok := canonicalCategory(rules, req.Category)
	if !ok {
		return domain.Dataset{}, domain.ErrInvalidCategory
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		return domain.Dataset{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ETH"
	}
	if !currencyPattern.MatchString(currency) {
		return domain.Dataset{}, domain.ErrInvalidCurrency
	}

	var previewImage *string
	if cid := strings.TrimSpace(req.PreviewImageCID); cid != "" {
		if err := contentstore.ValidateCID(cid); err != nil {
			return domain.Dataset{}, domain.ErrInvalidPreviewCID
		}
		previewImage = &cid
	}

	data, err := io.ReadAll(io.LimitReader(req.File, rules.MaxUploadBytes+1))
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > rules.MaxUploadBytes {
		s.metrics.RecordUpload(fileType, "rejected", 0)
		return domain.Dataset{}, domain.ErrFileTooLarge
	}
	if len(data) == 0 {
		return domain.Dataset{}, domain.ErrInvalidFile
	}

	inferred, err := inferContent(fileType, data, rules.PreviewRows)
	if err != nil {
		s.metrics.RecordUpload(fileType, "rejected", 0)
		return domain.Dataset{}, err
	}
	previewJSON, err := json.Marshal(inferred.Preview)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("encode preview: %w", err)
	}

	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	contentID, err := s.content.Upload(ctx, fileName, bytes.NewReader(data))
	if err != nil {
		s.metrics.RecordUpload(fileType, "failed", 0)
		return domain.Dataset{}, err
	}

	dataset := domain.Dataset{
		ID:              s.genID.Generate(),
		Name:            name,
		Slug:            slug.Make(name),
		Description:     description,
		Category:        category,
		Tags:            datatypes.JSONSlice[string](NormalizeTags(req.Tags)),
		Price:           price,
		Currency:        currency,
		UploaderAddress: strings.ToLower(uploader),
		ContentID:       contentID,
		PreviewImageCID: previewImage,
		Schema:          datatypes.JSONSlice[domain.SchemaField](inferred.Schema),
		Preview:         datatypes.JSON(previewJSON),
		FileName:        fileName,
		FileSize:        int64(len(data)),
		FileType:        fileType,
		Downloads:       0,
		CreatedAt:       s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &dataset); err != nil {
		s.log.Error("dataset insert failed after content upload",
			zap.String("content_id", contentID),
			zap.String("uploader_address", dataset.UploaderAddress),
			zap.Error(err),
		)
		s.metrics.RecordUpload(fileType, "failed", 0)
		return domain.Dataset{}, err
	}

	s.metrics.RecordUpload(fileType, "success", dataset.FileSize)
	s.log.Info("dataset created",
		zap.String("dataset_id", dataset.ID.String()),
		zap.String("content_id", contentstore.ShortCID(contentID)),
		zap.Int("schema_fields", len(dataset.Schema)),
	)
	return dataset, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDatasetRequest) (domain.ListDatasetResponse, error) {
	sort, err := domain.ParseSortOrder(strings.TrimSpace(req.Sort))
	if err != nil {
		return domain.ListDatasetResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()
	offset, err := page.Offset()
	if err != nil {
		return domain.ListDatasetResponse{}, err
	}

	filter := domain.ListDatasetFilter{
		Search:   strings.TrimSpace(req.Search),
		Category: strings.TrimSpace(req.Category),
	}

	items, err := s.repo.List(ctx, s.db, filter, sort, offset, page.PageSize+1)
	if err != nil {
		return domain.ListDatasetResponse{}, err
	}

	items, pageInfo := pagination.BuildPage(items, offset, page.PageSize, string(sort))
	return domain.ListDatasetResponse{
		PageInfo: *pageInfo,
		Datasets: derefAll(items),
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Dataset, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.Dataset{}, err
	}
	return s.Get(ctx, parsed)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Dataset, error) {
	if id == 0 {
		return domain.Dataset{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Dataset{}, err
	}
	if item == nil {
		return domain.Dataset{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListByUploader(ctx context.Context, address string) ([]domain.Dataset, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidUploader
	}
	items, err := s.repo.List(ctx, s.db, domain.ListDatasetFilter{Uploader: address}, domain.SortNewest, 0, uploaderListLimit)
	if err != nil {
		return nil, err
	}
	return derefAll(items), nil
}

func (s *Service) IncrementDownloads(ctx context.Context, id snowflake.ID) error {
	return s.repo.IncrementDownloads(ctx, s.db, id)
}

// Categories lists every configured category with its dataset count, zero included.
func (s *Service) Categories(ctx context.Context) ([]domain.CategorySummary, error) {
	counts, err := s.repo.CountByCategory(ctx, s.db)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(counts))
	for _, c := range counts {
		byName[strings.ToLower(c.Name)] += c.Count
	}

	categories := s.marketplace.Get().Categories
	out := make([]domain.CategorySummary, 0, len(categories))
	for _, name := range categories {
		out = append(out, domain.CategorySummary{Name: name, Count: byName[strings.ToLower(name)]})
	}
	return out, nil
}

// NormalizeTags trims tags and drops blanks and case-insensitive duplicates, keeping first spelling.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func parsePrice(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Decimal{}, domain.ErrInvalidPrice
	}
	price, err := decimal.NewFromString(value)
	if err != nil || price.IsNegative() {
		return decimal.Decimal{}, domain.ErrInvalidPrice
	}
	return price, nil
}

func canonicalCategory(rules config.MarketplaceConfig, value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, category := range rules.Categories {
		if strings.EqualFold(category, value) {
			return category, true
		}
	}
	return "", false
}

func normalizeFileType(fileType, fileName string) string {
	fileType = strings.ToLower(strings.TrimSpace(fileType))
	if idx := strings.Index(fileType, ";"); idx >= 0 {
		fileType = strings.TrimSpace(fileType[:idx])
	}
	if fileType != "" && fileType != "application/octet-stream" {
		return fileType
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return fileType
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func derefAll(items []*domain.Dataset) []domain.Dataset {
	out := make([]domain.Dataset, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}

