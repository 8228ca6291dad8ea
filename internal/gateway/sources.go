package gateway

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/gateway/domain"
	"go.uber.org/zap"
)

// FallbackSource fabricates unverifiable orders. It only produces orders when enabled.
type FallbackSource struct {
	enabled bool
	clock   clock.Clock
}

func NewFallbackSource(enabled bool, clk clock.Clock) *FallbackSource {
	if clk == nil {
		clk = clock.New()
	}
	return &FallbackSource{enabled: enabled, clock: clk}
}

func (f *FallbackSource) Enabled() bool {
	return f != nil && f.enabled
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func (f *FallbackSource) CreateOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if !f.Enabled() {
		return nil, fmt.Errorf("%w: unverified orders are disabled", domain.ErrOrderCreationFailed)
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	suffix, err := randomSuffix(9)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreationFailed, err)
	}
	now := f.clock.Now()
	return &domain.Order{
		ID:        fmt.Sprintf("order_%d_%s", now.UnixMilli(), suffix),
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		Verified:  false,
	}, nil
}

func randomSuffix(n int) (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36[idx.Int64()])
	}
	return sb.String(), nil
}

// BackendSource asks a trusted backend that holds the gateway secret to create the order.
type BackendSource struct {
	client *resty.Client
}

func NewBackendSource(baseURL string, timeout time.Duration) *BackendSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BackendSource{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
}

type backendOrderRequest struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	DatasetID    string  `json:"dataset_id"`
	BuyerAddress string  `json:"buyer_address,omitempty"`
}

type backendOrderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type backendError struct {
	Error   interface{} `json:"error"`
	Message string      `json:"message"`
	Details string      `json:"details"`
}

func (e *backendError) describe(status int) string {
	switch {
	case e.Details != "":
		return e.Details
	case e.Message != "":
		return e.Message
	}
	if s, ok := e.Error.(string); ok && s != "" {
		return s
	}
	return fmt.Sprintf("backend returned status %d", status)
}

// CreateOrder sends the amount in major units; the backend converts it to minor units.
func (b *BackendSource) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var out backendOrderResponse
	var apiErr backendError
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(backendOrderRequest{
			Amount:       FromMinorUnits(req.Amount).InexactFloat64(),
			Currency:     strings.ToUpper(req.Currency),
			DatasetID:    req.DatasetID,
			BuyerAddress: req.BuyerAddress,
		}).
		SetResult(&out).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/api/create-order")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOrderCreationFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderCreationFailed, apiErr.describe(resp.StatusCode()))
	}
	if out.ID == "" || out.Amount != req.Amount {
		return nil, fmt.Errorf("%w: malformed order response", domain.ErrOrderCreationFailed)
	}
	return &domain.Order{
		ID:        out.ID,
		Amount:    out.Amount,
		Currency:  out.Currency,
		Receipt:   out.Receipt,
		Status:    out.Status,
		CreatedAt: time.Unix(out.CreatedAt, 0).UTC(),
		Verified:  true,
	}, nil
}

// FallbackChain tries the primary source first and falls back to unverified orders when allowed.
type FallbackChain struct {
	Primary  domain.OrderSource
	Fallback *FallbackSource
	Log      *zap.Logger
}

func (c *FallbackChain) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if c.Primary != nil {
		order, err := c.Primary.CreateOrder(ctx, req)
		if err == nil {
			return order, nil
		}
		if !c.Fallback.Enabled() {
			return nil, err
		}
		if c.Log != nil {
			c.Log.Warn("order creation failed, using unverified order", zap.Error(err))
		}
	}
	return c.Fallback.CreateOrder(ctx, req)
}

// KnownOrder resolves an order created earlier in the flow.
// Without a fetcher the order is taken on trust and marked unverified.
type KnownOrder struct {
	OrderID string
	Fetcher domain.PaymentFetcher
}

func (k KnownOrder) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	id := strings.TrimSpace(k.OrderID)
	if id == "" {
		return nil, fmt.Errorf("%w: missing order id", domain.ErrOrderMismatch)
	}
	if k.Fetcher == nil {
		return &domain.Order{
			ID:       id,
			Amount:   req.Amount,
			Currency: strings.ToUpper(req.Currency),
			Status:   domain.OrderStatusCreated,
			Verified: false,
		}, nil
	}

	order, err := k.Fetcher.FetchOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Amount != req.Amount {
		return nil, fmt.Errorf("%w: order amount %d does not match price %d", domain.ErrOrderMismatch, order.Amount, req.Amount)
	}
	if req.Currency != "" && !strings.EqualFold(order.Currency, req.Currency) {
		return nil, fmt.Errorf("%w: order currency %s does not match %s", domain.ErrOrderMismatch, order.Currency, req.Currency)
	}
	order.Verified = true
	return order, nil
}
