package razorpay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/dataverse/internal/gateway/domain"
)

const (
	DefaultBaseURL = "https://api.razorpay.com"
	keyPrefix      = "rzp_"
	defaultTimeout = 15 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "razorpay"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	secret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || secret == "" {
		return nil, domain.ErrMissingCredentials
	}
	if !strings.HasPrefix(keyID, keyPrefix) {
		return nil, fmt.Errorf("%w: key id must start with %q", domain.ErrInvalidConfig, keyPrefix)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, secret).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Adapter{client: client, keyID: keyID, secret: secret}, nil
}

type Adapter struct {
	client *resty.Client
	keyID  string
	secret string
}

func (a *Adapter) Provider() string { return "razorpay" }
func (a *Adapter) KeyID() string    { return a.keyID }
func (a *Adapter) Secret() string   { return a.secret }

type createOrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes"`
}

type orderResponse struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

type paymentResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field"`
		Reason      string `json:"reason"`
	} `json:"error"`
}

func (e *errorResponse) describe(status int) string {
	if e != nil && e.Error.Description != "" {
		return e.Error.Description
	}
	return http.StatusText(status)
}

func (a *Adapter) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}

	buyer := req.BuyerAddress
	if buyer == "" {
		buyer = "unknown"
	}
	body := createOrderRequest{
		Amount:         req.Amount,
		Currency:       currency,
		Receipt:        fmt.Sprintf("receipt_%s_%s", req.DatasetID, ulid.Make().String()),
		PaymentCapture: 1,
		Notes: map[string]string{
			"dataset_id":    req.DatasetID,
			"dataset_name":  req.DatasetName,
			"buyer_address": buyer,
			"created_at":    time.Now().UTC().Format(time.RFC3339),
		},
	}

	var out orderResponse
	var apiErr errorResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreationFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderCreationFailed, apiErr.describe(resp.StatusCode()))
	}
	if out.ID == "" || out.Amount != req.Amount {
		return nil, fmt.Errorf("%w: malformed order response", domain.ErrOrderCreationFailed)
	}
	return out.toDomain(), nil
}

func (a *Adapter) FetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrOrderMismatch
	}

	var out orderResponse
	var apiErr errorResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Get("/v1/orders/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, apiErr.describe(resp.StatusCode()))
	}
	if out.ID != orderID {
		return nil, fmt.Errorf("%w: order %q not returned", domain.ErrOrderMismatch, orderID)
	}
	return out.toDomain(), nil
}

func (a *Adapter) FetchPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.ErrPaymentFailed
	}

	var out paymentResponse
	var apiErr errorResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUpstream, apiErr.describe(resp.StatusCode()))
	}
	if out.ID != paymentID {
		return nil, fmt.Errorf("%w: payment %q not returned", domain.ErrUpstream, paymentID)
	}
	return &domain.Payment{
		ID:       out.ID,
		OrderID:  out.OrderID,
		Status:   out.Status,
		Amount:   out.Amount,
		Currency: out.Currency,
		Method:   out.Method,
	}, nil
}

func (o orderResponse) toDomain() *domain.Order {
	return &domain.Order{
		ID:        o.ID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Receipt:   o.Receipt,
		Status:    o.Status,
		CreatedAt: time.Unix(o.CreatedAt, 0).UTC(),
		Verified:  true,
	}
}
