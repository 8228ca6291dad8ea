package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/internal/gateway"
	gatewaydomain "github.com/smallbiznis/dataverse/internal/gateway/domain"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
)

type createOrderRequest struct {
	Amount       any        `json:"amount"`
	Currency     string     `json:"currency"`
	DatasetID    flexibleID `json:"dataset_id"`
	DatasetName  string     `json:"dataset_name"`
	BuyerAddress string     `json:"buyer_address"`
}

type orderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	KeyID     string `json:"key_id,omitempty"`
}

// CreateOrder opens a gateway order for a dataset price given in major units.
func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		AbortWithError(c, newReceivedError("amount", "invalid_amount", "Invalid amount", req.Amount))
		return
	}

	name := strings.TrimSpace(req.DatasetName)
	datasetID := req.DatasetID.String()
	if datasetID != "" {
		ds, err := s.lookupDataset(c, datasetID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if gateway.MinorUnits(ds.Price) != gateway.MinorUnits(amount) {
			AbortWithError(c, newReceivedError("amount", "amount_mismatch", "amount does not match the dataset price", req.Amount))
			return
		}
		if name == "" {
			name = ds.Name
		}
		c.Set("dataset_id", ds.ID.String())
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.gatewaySvc.Currency()
	}

	order, err := s.gatewaySvc.CreateOrder(c.Request.Context(), gatewaydomain.OrderRequest{
		Amount:       gateway.MinorUnits(amount),
		Currency:     currency,
		DatasetID:    datasetID,
		DatasetName:  name,
		BuyerAddress: strings.TrimSpace(req.BuyerAddress),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	source := "unverified"
	if order.Verified {
		source = "gateway"
	}
	s.metrics.RecordGatewayOrder(source, order.Verified)

	c.JSON(http.StatusOK, orderResponse{
		ID:        order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Receipt:   order.Receipt,
		Status:    order.Status,
		CreatedAt: order.CreatedAt.Unix(),
		KeyID:     s.gatewaySvc.KeyID(),
	})
}

type verifyPaymentRequest struct {
	OrderID      string     `json:"razorpay_order_id"`
	PaymentID    string     `json:"razorpay_payment_id"`
	Signature    string     `json:"razorpay_signature"`
	DatasetID    flexibleID `json:"dataset_id"`
	BuyerAddress string     `json:"buyer_address"`
}

func (r verifyPaymentRequest) missing() error {
	var errs []ValidationError
	required := []struct{ field, value string }{
		{"razorpay_order_id", r.OrderID},
		{"razorpay_payment_id", r.PaymentID},
		{"razorpay_signature", r.Signature},
		{"dataset_id", r.DatasetID.String()},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			errs = append(errs, ValidationError{Field: item.field, Code: "required", Message: item.field + " is required"})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Errors: errs}
}

// VerifyPayment checks a completed checkout and records the purchase it pays for.
func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.missing(); err != nil {
		AbortWithError(c, err)
		return
	}

	ds, err := s.lookupDataset(c, req.DatasetID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result := gatewaydomain.CheckoutResult{
		PaymentID: strings.TrimSpace(req.PaymentID),
		OrderID:   strings.TrimSpace(req.OrderID),
		Signature: strings.TrimSpace(req.Signature),
	}
	session, err := s.gatewaySvc.SessionFor(result)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.orchestrator.Purchase(c.Request.Context(), orchestrator.Request{
		Dataset:       &ds,
		Method:        purchasedomain.MethodGateway,
		WalletAddress: strings.TrimSpace(req.BuyerAddress),
		Checkout:      session,
		Reference:     result.PaymentID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	message := "Payment verified and purchase recorded successfully"
	if !res.Purchase.Confirmed {
		message = "Payment recorded but not verified; access is not granted"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"payment_id":  result.PaymentID,
		"order_id":    result.OrderID,
		"purchase_id": res.Purchase.ID.String(),
		"confirmed":   res.Purchase.Confirmed,
		"replayed":    res.Replayed,
		"message":     message,
	})
}

// PurchaseStatus reports whether a buyer holds a confirmed purchase of a dataset.
func (s *Server) PurchaseStatus(c *gin.Context) {
	datasetID, err := parseSnowflakeID(c.Param("dataset_id"))
	if err != nil {
		AbortWithError(c, newValidationError("dataset_id", "invalid_dataset_id", "invalid dataset_id"))
		return
	}
	buyer, ok := parseAddress(c.Param("buyer_address"))
	if !ok {
		AbortWithError(c, newValidationError("buyer_address", "invalid_buyer_address", "invalid buyer_address"))
		return
	}

	found, err := s.purchaseSvc.FindConfirmed(c.Request.Context(), datasetID, buyer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"has_purchased":    found != nil,
		"purchase_details": found,
	})
}

func (s *Server) lookupDataset(c *gin.Context, id string) (datasetdomain.Dataset, error) {
	if _, err := parseSnowflakeID(id); err != nil {
		return datasetdomain.Dataset{}, newValidationError("dataset_id", "invalid_dataset_id", "invalid dataset_id")
	}
	ds, err := s.datasetSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, datasetdomain.ErrInvalidID) {
			return datasetdomain.Dataset{}, newValidationError("dataset_id", "invalid_dataset_id", "invalid dataset_id")
		}
		return datasetdomain.Dataset{}, err
	}
	return ds, nil
}

func parseAmount(value any) (decimal.Decimal, bool) {
	var (
		amount decimal.Decimal
		err    error
	)
	switch v := value.(type) {
	case float64:
		amount = decimal.NewFromFloat(v)
	case json.Number:
		amount, err = decimal.NewFromString(v.String())
	case string:
		amount, err = decimal.NewFromString(strings.TrimSpace(v))
	default:
		return decimal.Zero, false
	}
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
