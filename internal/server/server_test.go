package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/config"
	"github.com/smallbiznis/dataverse/internal/contentstore"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	datasetrepository "github.com/smallbiznis/dataverse/internal/dataset/repository"
	datasetservice "github.com/smallbiznis/dataverse/internal/dataset/service"
	"github.com/smallbiznis/dataverse/internal/gateway"
	gatewaydomain "github.com/smallbiznis/dataverse/internal/gateway/domain"
	"github.com/smallbiznis/dataverse/internal/migration"
	"github.com/smallbiznis/dataverse/internal/observability"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	"github.com/smallbiznis/dataverse/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
	purchaserepository "github.com/smallbiznis/dataverse/internal/purchase/repository"
	purchaseservice "github.com/smallbiznis/dataverse/internal/purchase/service"
	"github.com/smallbiznis/dataverse/internal/ratelimit"
	"github.com/smallbiznis/dataverse/internal/server"
	"github.com/smallbiznis/dataverse/internal/wallet"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	secret   = "gateway-secret"
	uploader = "0x742d35Cc6635C0532925a3b8D9C3A46e8D2b40c1"
	receiver = "0x00000000000000000000000000000000000000Aa"
	buyer    = "0xAbCdEf0000000000000000000000000000000001"
	txHash   = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

var dbSeq atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.ApplySQLite(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

type fakeAdapter struct {
	orders   map[string]*gatewaydomain.Order
	payments map[string]*gatewaydomain.Payment
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{orders: map[string]*gatewaydomain.Order{}, payments: map[string]*gatewaydomain.Payment{}}
}

func (f *fakeAdapter) Provider() string { return "fake" }
func (f *fakeAdapter) KeyID() string    { return "rzp_test_fake" }
func (f *fakeAdapter) Secret() string   { return secret }

func (f *fakeAdapter) CreateOrder(_ context.Context, req gatewaydomain.OrderRequest) (*gatewaydomain.Order, error) {
	order := &gatewaydomain.Order{
		ID:        "order_abc",
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   "receipt_" + req.DatasetID,
		Status:    gatewaydomain.OrderStatusCreated,
		CreatedAt: time.Unix(1714521600, 0),
		Verified:  true,
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeAdapter) FetchOrder(_ context.Context, id string) (*gatewaydomain.Order, error) {
	if o, ok := f.orders[id]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, gatewaydomain.ErrUpstream
}

func (f *fakeAdapter) FetchPayment(_ context.Context, id string) (*gatewaydomain.Payment, error) {
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, gatewaydomain.ErrUpstream
}

type harness struct {
	engine    *gin.Engine
	adapter   *fakeAdapter
	datasets  datasetdomain.Service
	purchases purchasedomain.Service
	dataset   datasetdomain.Dataset
}

type option func(*harnessConfig)

type harnessConfig struct {
	adapter  bool
	fallback bool
	limiter  *ratelimit.ClientLimiter
}

func withoutGateway() option { return func(c *harnessConfig) { c.adapter = false } }
func withFallback() option   { return func(c *harnessConfig) { c.fallback = true } }
func withLimiter(l *ratelimit.ClientLimiter) option {
	return func(c *harnessConfig) { c.limiter = l }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hc := harnessConfig{adapter: true, limiter: ratelimit.NewClientLimiter(600, 100)}
	for _, opt := range opts {
		opt(&hc)
	}

	db := setupTestDB(t)
	log := zaptest.NewLogger(t)
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	content := contentstore.NewClient(contentstore.NewMemoryBackend(), "https://gateway.test", log)
	metrics := telemetry.NewMetricsWith(prometheus.NewRegistry())

	datasets := datasetservice.New(datasetservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        datasetrepository.Provide(),
		Content:     content,
		Marketplace: config.NewStaticMarketplaceConfigHolder(config.DefaultMarketplaceConfig()),
		Clock:       clk,
	})
	purchases := purchaseservice.New(purchaseservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  purchaserepository.Provide(),
		Clock: clk,
	})

	ds, err := datasets.Create(context.Background(), datasetdomain.CreateDatasetRequest{
		UploaderAddress: uploader,
		Name:            "Stock Prices",
		Description:     "Daily closes",
		Category:        "Finance",
		Price:           "500",
		FileName:        "prices.csv",
		FileType:        "text/csv",
		FileSize:        32,
		File:            strings.NewReader("symbol,close\nAAPL,189.5\nMSFT,402.1\n"),
	})
	require.NoError(t, err)

	adapter := newFakeAdapter()
	var gwAdapter gatewaydomain.Adapter
	if hc.adapter {
		gwAdapter = adapter
	}
	gw := gateway.NewServiceWith(gwAdapter, gateway.NewFallbackSource(hc.fallback, clk), "INR", log)

	orch, err := orchestrator.NewWithOptions(orchestrator.Options{
		Log:              log,
		Purchases:        purchases,
		Counter:          datasets,
		ReceivingAddress: receiver,
		GatewayCurrency:  "INR",
		Metrics:          metrics,
	})
	require.NoError(t, err)

	cfg := config.Config{AppName: "dataverse", Environment: "test", FrontendURL: "http://localhost:3000"}
	engine := server.NewEngine(observability.Config{Environment: "test"}, cfg, metrics)
	server.NewServer(server.ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		DatasetSvc:   datasets,
		PurchaseSvc:  purchases,
		GatewaySvc:   gw,
		Orchestrator: orch,
		Verifier:     wallet.NewStaticVerifier(nil, big.NewInt(1)),
		Content:      content,
		Receipts:     pdf.New(),
		Limiter:      hc.limiter,
		Log:          log,
		Metrics:      metrics,
		Clock:        clk,
	})

	return &harness{engine: engine, adapter: adapter, datasets: datasets, purchases: purchases, dataset: ds}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload, ok := decode(t, rec)["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload
}

func firstFieldError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	errs, ok := errorOf(t, rec)["errors"].([]any)
	require.True(t, ok, rec.Body.String())
	require.NotEmpty(t, errs)
	return errs[0].(map[string]any)
}

func (h *harness) verifyBody(paymentID, signature string) map[string]any {
	return map[string]any{
		"razorpay_order_id":   "order_abc",
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
		"dataset_id":          h.dataset.ID.String(),
		"buyer_address":       buyer,
	}
}

func (h *harness) createOrder(t *testing.T) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/create-order", map[string]any{
		"amount":     500,
		"dataset_id": h.dataset.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (h *harness) capture(paymentID string) {
	h.adapter.payments[paymentID] = &gatewaydomain.Payment{
		ID:       paymentID,
		OrderID:  "order_abc",
		Status:   gatewaydomain.PaymentStatusCaptured,
		Amount:   50000,
		Currency: "INR",
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Server is running", body["status"])
	assert.Equal(t, "2024-05-01T00:00:00.000Z", body["timestamp"])
	assert.Equal(t, true, body["razorpay"])
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/nope", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	payload := errorOf(t, rec)
	assert.Equal(t, "not_found", payload["type"])
	assert.Equal(t, "/api/nope", payload["path"])
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/create-order", map[string]any{
		"amount":     500,
		"dataset_id": h.dataset.ID.String(),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "order_abc", body["id"])
	assert.Equal(t, float64(50000), body["amount"])
	assert.Equal(t, "INR", body["currency"])
	assert.Equal(t, "created", body["status"])
	assert.Equal(t, float64(1714521600), body["created_at"])
}

func TestCreateOrderRejectsAmount(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name   string
		amount any
		code   string
	}{
		{"text", "abc", "invalid_amount"},
		{"zero", 0, "invalid_amount"},
		{"negative", -5, "invalid_amount"},
		{"wrong price", 499, "amount_mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/create-order", map[string]any{
				"amount":     tc.amount,
				"dataset_id": h.dataset.ID.String(),
			})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			field := firstFieldError(t, rec)
			assert.Equal(t, "amount", field["field"])
			assert.Equal(t, tc.code, field["code"])
			assert.NotNil(t, field["received"])
		})
	}
}

func TestCreateOrderWithoutCredentials(t *testing.T) {
	h := newHarness(t, withoutGateway())
	rec := h.do(t, http.MethodPost, "/api/create-order", map[string]any{"amount": 500})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "configuration_error", errorOf(t, rec)["type"])
}

func TestVerifyPaymentRecordsPurchase(t *testing.T) {
	h := newHarness(t)
	h.createOrder(t)
	h.capture("pay_xyz")

	rec := h.do(t, http.MethodPost, "/api/verify-payment", h.verifyBody("pay_xyz", gateway.Sign(secret, "order_abc", "pay_xyz")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pay_xyz", body["payment_id"])
	assert.Equal(t, "order_abc", body["order_id"])
	assert.Equal(t, "Payment verified and purchase recorded successfully", body["message"])
	assert.NotEmpty(t, body["purchase_id"])

	status := h.do(t, http.MethodGet, "/api/purchase-status/"+h.dataset.ID.String()+"/"+buyer, nil)
	require.Equal(t, http.StatusOK, status.Code)
	statusBody := decode(t, status)
	assert.Equal(t, true, statusBody["has_purchased"])
	details := statusBody["purchase_details"].(map[string]any)
	assert.Equal(t, strings.ToLower(buyer), details["buyer_address"])

	replay := h.do(t, http.MethodPost, "/api/verify-payment", h.verifyBody("pay_xyz", gateway.Sign(secret, "order_abc", "pay_xyz")))
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	replayBody := decode(t, replay)
	assert.Equal(t, true, replayBody["replayed"])
	assert.Equal(t, body["purchase_id"], replayBody["purchase_id"])
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	h.createOrder(t)

	rec := h.do(t, http.MethodPost, "/api/verify-payment", h.verifyBody("pay_xyz", "deadbeef"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := errorOf(t, rec)
	assert.Equal(t, "Invalid payment signature", payload["message"])

	status := h.do(t, http.MethodGet, "/api/purchase-status/"+h.dataset.ID.String()+"/"+buyer, nil)
	assert.Equal(t, false, decode(t, status)["has_purchased"])
}

func TestVerifyPaymentRequiresCapture(t *testing.T) {
	h := newHarness(t)
	h.createOrder(t)
	h.capture("pay_xyz")
	h.adapter.payments["pay_xyz"].Status = gatewaydomain.PaymentStatusAuthorized

	rec := h.do(t, http.MethodPost, "/api/verify-payment", h.verifyBody("pay_xyz", gateway.Sign(secret, "order_abc", "pay_xyz")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment not captured", errorOf(t, rec)["message"])
}

func TestVerifyPaymentRequiresFields(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/verify-payment", map[string]any{"dataset_id": h.dataset.ID.String()})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := errorOf(t, rec)["errors"].([]any)
	assert.Len(t, errs, 3)
}

func TestVerifyPaymentUnverifiedOrderGrantsNothing(t *testing.T) {
	h := newHarness(t, withoutGateway(), withFallback())

	rec := h.do(t, http.MethodPost, "/api/verify-payment", map[string]any{
		"razorpay_order_id":   "order_1714521600000_abcdefghi",
		"razorpay_payment_id": "pay_mock",
		"razorpay_signature":  "unused",
		"dataset_id":          h.dataset.ID.String(),
		"buyer_address":       buyer,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["confirmed"])

	status := h.do(t, http.MethodGet, "/api/purchase-status/"+h.dataset.ID.String()+"/"+buyer, nil)
	assert.Equal(t, false, decode(t, status)["has_purchased"])
}

func TestCryptoPurchaseAndDownload(t *testing.T) {
	h := newHarness(t)
	download := "/api/datasets/" + h.dataset.ID.String() + "/download?buyer_address=" + buyer

	denied := h.do(t, http.MethodGet, download, nil)
	require.Equal(t, http.StatusForbidden, denied.Code)

	rec := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    h.dataset.ID.String(),
		"buyer_address": buyer,
		"tx_hash":       txHash,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["entitled"])
	assert.Equal(t, txHash, data["transaction_reference"])

	granted := h.do(t, http.MethodGet, download, nil)
	require.Equal(t, http.StatusFound, granted.Code)
	assert.Equal(t, "https://gateway.test/ipfs/"+h.dataset.ContentID, granted.Header().Get("Location"))

	again := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    h.dataset.ID.String(),
		"buyer_address": buyer,
		"tx_hash":       "0x" + strings.Repeat("ab", 32),
	})
	require.Equal(t, http.StatusConflict, again.Code)
	assert.Equal(t, "already_purchased", errorOf(t, again)["type"])

	ds, err := h.datasets.Get(context.Background(), h.dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.Downloads)
}

func TestCryptoPurchaseValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    h.dataset.ID.String(),
		"buyer_address": "not-an-address",
		"tx_hash":       txHash,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "buyer_address", firstFieldError(t, rec)["field"])

	malformed := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    h.dataset.ID.String(),
		"buyer_address": buyer,
		"tx_hash":       "0x1234",
	})
	require.Equal(t, http.StatusPaymentRequired, malformed.Code)

	missing := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    "123456789",
		"buyer_address": buyer,
		"tx_hash":       txHash,
	})
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUploaderCanDownload(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/datasets/"+h.dataset.ID.String()+"/download?buyer_address="+uploader, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestReceipt(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
		"dataset_id":    h.dataset.ID.String(),
		"buyer_address": buyer,
		"tx_hash":       txHash,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	purchase := decode(t, rec)["data"].(map[string]any)["purchase"].(map[string]any)
	id := fmt.Sprint(purchase["id"])

	receipt := h.do(t, http.MethodGet, "/api/purchases/"+id+"/receipt?buyer_address="+buyer, nil)
	require.Equal(t, http.StatusOK, receipt.Code)
	assert.Equal(t, "application/pdf", receipt.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(receipt.Body.Bytes(), []byte("%PDF")))

	stranger := h.do(t, http.MethodGet, "/api/purchases/"+id+"/receipt?buyer_address="+uploader, nil)
	assert.Equal(t, http.StatusNotFound, stranger.Code)
}

func TestListingEndpoints(t *testing.T) {
	h := newHarness(t)

	list := h.do(t, http.MethodGet, "/api/datasets?category=Finance&sort=price-low", nil)
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	datasets := decode(t, list)["data"].(map[string]any)["datasets"].([]any)
	assert.Len(t, datasets, 1)

	badSort := h.do(t, http.MethodGet, "/api/datasets?sort=cheapest", nil)
	assert.Equal(t, http.StatusBadRequest, badSort.Code)

	categories := h.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, categories.Code)

	mine := h.do(t, http.MethodGet, "/api/users/"+uploader+"/datasets", nil)
	require.Equal(t, http.StatusOK, mine.Code)
	assert.Len(t, decode(t, mine)["data"].([]any), 1)

	bad := h.do(t, http.MethodGet, "/api/users/nobody/purchases", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCreateDatasetUpload(t *testing.T) {
	h := newHarness(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"uploader_address": uploader,
		"name":             "Weather",
		"description":      "Hourly readings",
		"category":         "Science",
		"price":            "0.25",
		"tags":             "climate, hourly",
	} {
		require.NoError(t, w.WriteField(k, v))
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="weather.csv"`}
	header["Content-Type"] = []string{"text/csv"}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("city,temp\nOslo,3.5\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "weather", data["slug"])
	assert.Equal(t, []any{"climate", "hourly"}, data["tags"])
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, withLimiter(ratelimit.NewClientLimiter(1, 1)))

	first := h.do(t, http.MethodPost, "/api/create-order", map[string]any{"amount": 500})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := h.do(t, http.MethodPost, "/api/create-order", map[string]any{"amount": 500})
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limited", errorOf(t, second)["type"])
}

func TestCryptoPurchaseRejectsForeignReference(t *testing.T) {
	h := newHarness(t)
	purchase := func(datasetID, who string) *httptest.ResponseRecorder {
		return h.do(t, http.MethodPost, "/api/purchases/crypto", map[string]any{
			"dataset_id":    datasetID,
			"buyer_address": who,
			"tx_hash":       txHash,
		})
	}
	require.Equal(t, http.StatusOK, purchase(h.dataset.ID.String(), buyer).Code)

	other := "0x00000000000000000000000000000000000000b2"
	stolen := purchase(h.dataset.ID.String(), other)
	require.Equal(t, http.StatusConflict, stolen.Code, stolen.Body.String())
	assert.Equal(t, "reference_in_use", errorOf(t, stolen)["type"])
	assert.NotContains(t, stolen.Body.String(), strings.ToLower(buyer))

	second, err := h.datasets.Create(context.Background(), datasetdomain.CreateDatasetRequest{
		UploaderAddress: uploader,
		Name:            "Bond Yields",
		Category:        "Finance",
		Price:           "500",
		FileName:        "yields.csv",
		FileType:        "text/csv",
		FileSize:        20,
		File:            strings.NewReader("tenor,yield\n10y,4.2\n"),
	})
	require.NoError(t, err)
	reused := purchase(second.ID.String(), buyer)
	require.Equal(t, http.StatusConflict, reused.Code, reused.Body.String())

	status := h.do(t, http.MethodGet, "/api/purchase-status/"+second.ID.String()+"/"+buyer, nil)
	assert.Equal(t, false, decode(t, status)["has_purchased"])
	denied := h.do(t, http.MethodGet, "/api/datasets/"+second.ID.String()+"/download?buyer_address="+other, nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)
}
