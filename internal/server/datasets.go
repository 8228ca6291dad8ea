package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/pkg/db/pagination"
)

func (s *Server) ListDatasets(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search   string `form:"search"`
		Category string `form:"category"`
		Sort     string `form:"sort"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.datasetSvc.List(c.Request.Context(), datasetdomain.ListDatasetRequest{
		Search:    strings.TrimSpace(query.Search),
		Category:  strings.TrimSpace(query.Category),
		Sort:      strings.TrimSpace(query.Sort),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDataset(c *gin.Context) {
	ds, err := s.lookupDataset(c, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ds})
}

// CreateDataset accepts a multipart upload: the file plus the listing fields.
func (s *Server) CreateDataset(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortWithError(c, newValidationError("file", "invalid_file", "file could not be read"))
		return
	}
	defer file.Close()

	form, _ := c.MultipartForm()
	var tags []string
	if form != nil {
		tags = splitTags(form.Value["tags"])
	}

	ds, err := s.datasetSvc.Create(c.Request.Context(), datasetdomain.CreateDatasetRequest{
		UploaderAddress: strings.TrimSpace(c.PostForm("uploader_address")),
		Name:            strings.TrimSpace(c.PostForm("name")),
		Description:     strings.TrimSpace(c.PostForm("description")),
		Category:        strings.TrimSpace(c.PostForm("category")),
		Tags:            tags,
		Price:           strings.TrimSpace(c.PostForm("price")),
		Currency:        strings.TrimSpace(c.PostForm("currency")),
		PreviewImageCID: strings.TrimSpace(c.PostForm("preview_image_cid")),
		FileName:        header.Filename,
		FileType:        header.Header.Get("Content-Type"),
		FileSize:        header.Size,
		File:            file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": ds})
}

// DownloadDataset redirects entitled callers to the content gateway.
func (s *Server) DownloadDataset(c *gin.Context) {
	ctx := c.Request.Context()
	ds, err := s.lookupDataset(c, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("dataset_id", ds.ID.String())

	entitled := ds.Price.IsZero()
	if !entitled {
		buyer, ok := parseAddress(c.Query("buyer_address"))
		if !ok {
			AbortWithError(c, newValidationError("buyer_address", "invalid_buyer_address", "invalid buyer_address"))
			return
		}
		if strings.EqualFold(buyer, ds.UploaderAddress) {
			entitled = true
		} else {
			entitled, err = s.purchaseSvc.HasPurchased(ctx, ds.ID, buyer)
			if err != nil {
				AbortWithError(c, err)
				return
			}
		}
	}
	if !entitled {
		s.metrics.RecordDownload("denied")
		AbortWithError(c, ErrForbidden)
		return
	}

	s.metrics.RecordDownload("granted")
	c.Redirect(http.StatusFound, s.content.URL(ds.ContentID))
}

func (s *Server) ListCategories(c *gin.Context) {
	items, err := s.datasetSvc.Categories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListUserDatasets(c *gin.Context) {
	address, ok := parseAddress(c.Param("address"))
	if !ok {
		AbortWithError(c, newValidationError("address", "invalid_address", "invalid address"))
		return
	}

	items, err := s.datasetSvc.ListByUploader(c.Request.Context(), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func isDatasetValidationError(err error) bool {
	switch {
	case errors.Is(err, datasetdomain.ErrInvalidUploader),
		errors.Is(err, datasetdomain.ErrInvalidName),
		errors.Is(err, datasetdomain.ErrInvalidDescription),
		errors.Is(err, datasetdomain.ErrInvalidCategory),
		errors.Is(err, datasetdomain.ErrInvalidPrice),
		errors.Is(err, datasetdomain.ErrInvalidCurrency),
		errors.Is(err, datasetdomain.ErrInvalidFile),
		errors.Is(err, datasetdomain.ErrInvalidFileType),
		errors.Is(err, datasetdomain.ErrFileTooLarge),
		errors.Is(err, datasetdomain.ErrInvalidContent),
		errors.Is(err, datasetdomain.ErrInvalidSort),
		errors.Is(err, datasetdomain.ErrInvalidPreviewCID),
		errors.Is(err, datasetdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}
