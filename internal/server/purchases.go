package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	"github.com/smallbiznis/dataverse/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
)

type cryptoPurchaseRequest struct {
	DatasetID    flexibleID `json:"dataset_id"`
	BuyerAddress string     `json:"buyer_address"`
	TxHash       string     `json:"tx_hash"`
}

type purchaseResponse struct {
	Purchase             purchasedomain.Purchase `json:"purchase"`
	TransactionReference string                  `json:"transaction_reference"`
	Entitled             bool                    `json:"entitled"`
	Replayed             bool                    `json:"replayed"`
}

// CreateCryptoPurchase records a transfer the buyer's wallet already broadcast.
func (s *Server) CreateCryptoPurchase(c *gin.Context) {
	var req cryptoPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	buyer, ok := parseAddress(req.BuyerAddress)
	if !ok {
		AbortWithError(c, newValidationError("buyer_address", "invalid_buyer_address", "invalid buyer_address"))
		return
	}
	txHash := strings.TrimSpace(req.TxHash)
	if txHash == "" {
		AbortWithError(c, newValidationError("tx_hash", "required", "tx_hash is required"))
		return
	}

	ds, err := s.lookupDataset(c, req.DatasetID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("dataset_id", ds.ID.String())

	res, err := s.orchestrator.Purchase(c.Request.Context(), orchestrator.Request{
		Dataset:   &ds,
		Method:    purchasedomain.MethodCrypto,
		Wallet:    s.verifier.Transfer(buyer, txHash),
		Reference: txHash,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": purchaseResponse{
		Purchase:             res.Purchase,
		TransactionReference: res.TransactionReference,
		Entitled:             res.Entitled,
		Replayed:             res.Replayed,
	}})
}

func (s *Server) GetPurchase(c *gin.Context) {
	item, err := s.purchaseSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListUserPurchases(c *gin.Context) {
	buyer, ok := parseAddress(c.Param("address"))
	if !ok {
		AbortWithError(c, newValidationError("address", "invalid_address", "invalid address"))
		return
	}

	items, err := s.purchaseSvc.ListByBuyer(c.Request.Context(), buyer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// DownloadReceipt renders the PDF receipt for a purchase owned by buyer_address.
func (s *Server) DownloadReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := s.purchaseSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	buyer := strings.TrimSpace(c.Query("buyer_address"))
	if buyer == "" || !strings.EqualFold(buyer, item.BuyerAddress) {
		AbortWithError(c, ErrNotFound)
		return
	}

	ds, err := s.datasetSvc.Get(ctx, item.DatasetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.ReceiptData{
		Issuer:      s.cfg.AppName,
		PurchaseID:  item.ID.String(),
		PurchasedAt: item.CreatedAt.UTC().Format("02 Jan 2006 15:04 UTC"),
		DatasetID:   ds.ID.String(),
		DatasetName: ds.Name,
		ContentID:   ds.ContentID,
		Buyer:       item.BuyerAddress,
		Method:      string(item.PaymentMethod),
		Reference:   item.TxReference,
		Amount:      item.Amount.String(),
		Currency:    item.Currency,
		Confirmed:   item.Confirmed,
		Verified:    item.Verified,
	}
	if item.OrderID != nil {
		data.OrderID = *item.OrderID
	}
	if item.Confirmed {
		data.DownloadLink = s.content.URL(ds.ContentID)
	}

	reader, err := s.receipts.GenerateReceipt(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(body) == 0 {
		AbortWithError(c, errors.New("empty receipt"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, item.ID.String()))
	c.DataFromReader(http.StatusOK, int64(len(body)), "application/pdf", bytes.NewReader(body), nil)
}

func isPurchaseValidationError(err error) bool {
	switch {
	case errors.Is(err, purchasedomain.ErrInvalidDataset),
		errors.Is(err, purchasedomain.ErrInvalidBuyer),
		errors.Is(err, purchasedomain.ErrInvalidPaymentMethod),
		errors.Is(err, purchasedomain.ErrInvalidReference),
		errors.Is(err, purchasedomain.ErrInvalidAmount),
		errors.Is(err, purchasedomain.ErrInvalidCurrency),
		errors.Is(err, purchasedomain.ErrInvalidID):
		return true
	default:
		return false
	}
}
