package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/internal/gateway"
	gatewaydomain "github.com/smallbiznis/dataverse/internal/gateway/domain"
	"github.com/smallbiznis/dataverse/internal/migration"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	"github.com/smallbiznis/dataverse/internal/purchase"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
	"github.com/smallbiznis/dataverse/internal/purchase/repository"
	purchaseservice "github.com/smallbiznis/dataverse/internal/purchase/service"
	"github.com/smallbiznis/dataverse/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	receiver = "0x742d35Cc6635C0532925a3b8D9C3A46e8D2b40c1"
	buyer    = "0xAbCdEf0000000000000000000000000000000001"
	txHash   = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	secret   = "gateway-secret"
)

var dbSeq atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:orchestrator_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.ApplySQLite(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

type fakeWallet struct {
	address string
	hash    string
	err     error
	calls   int
	to      common.Address
	wei     *big.Int
}

func (w *fakeWallet) Address() string { return w.address }

func (w *fakeWallet) Pay(_ context.Context, to common.Address, wei *big.Int) (string, error) {
	w.calls++
	w.to, w.wei = to, wei
	if w.err != nil {
		return "", w.err
	}
	return w.hash, nil
}

type fakeCounter struct {
	calls int
	err   error
}

func (c *fakeCounter) IncrementDownloads(context.Context, snowflake.ID) error {
	c.calls++
	return c.err
}

type fakeLock struct {
	held bool
}

func (l *fakeLock) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLock) Release(context.Context, string, string) error { return nil }

type failingPurchases struct {
	purchasedomain.Service
}

func (failingPurchases) Record(context.Context, purchasedomain.RecordPurchaseRequest) (purchasedomain.Purchase, error) {
	return purchasedomain.Purchase{}, errors.New("disk full")
}

type env struct {
	db        *gorm.DB
	purchases purchasedomain.Service
	counter   *fakeCounter
	cache     *purchase.EntitlementCache
	dataset   *datasetdomain.Dataset
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	err = db.Exec(
		`INSERT INTO datasets (id, name, slug, category, price, uploader_address, content_id, created_at)
		 VALUES (7, 'Rates', 'rates', 'Finance', 500, '0xuploader', 'bafy', ?)`, time.Now().UTC(),
	).Error
	require.NoError(t, err)

	return &env{
		db: db,
		purchases: purchaseservice.New(purchaseservice.Params{
			DB:    db,
			Log:   zaptest.NewLogger(t),
			GenID: node,
			Repo:  repository.Provide(),
		}),
		counter: &fakeCounter{},
		cache:   purchase.NewEntitlementCache(time.Minute),
		dataset: &datasetdomain.Dataset{ID: 7, Name: "Rates", Price: decimal.NewFromInt(500), Currency: "ETH"},
	}
}

func (e *env) orchestrator(t *testing.T, lock orchestrator.Lock) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.NewWithOptions(orchestrator.Options{
		Log:              zaptest.NewLogger(t),
		Purchases:        e.purchases,
		Counter:          e.counter,
		Lock:             lock,
		ReceivingAddress: receiver,
		GatewayCurrency:  "INR",
	})
	require.NoError(t, err)
	return o
}

func (e *env) purchaseCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Raw(`SELECT COUNT(*) FROM purchases`).Scan(&n).Error)
	return n
}

func (e *env) entitled(who string) bool {
	v, _ := e.cache.Get(e.dataset.ID, who)
	return v
}

func checkout(source gatewaydomain.OrderSource, opener gatewaydomain.CheckoutOpener) *gateway.Session {
	return &gateway.Session{Source: source, Checkout: opener, Secret: secret}
}

type verifiedSource struct {
	last gatewaydomain.OrderRequest
}

func (s *verifiedSource) CreateOrder(_ context.Context, req gatewaydomain.OrderRequest) (*gatewaydomain.Order, error) {
	s.last = req
	return &gatewaydomain.Order{ID: "order_abc", Amount: req.Amount, Currency: req.Currency, Verified: true}, nil
}

func signedCheckout(paymentID string) gateway.CheckoutFunc {
	return func(_ context.Context, order gatewaydomain.Order) (*gatewaydomain.CheckoutResult, error) {
		return &gatewaydomain.CheckoutResult{
			PaymentID: paymentID,
			OrderID:   order.ID,
			Signature: gateway.Sign(secret, order.ID, paymentID),
		}, nil
	}
}

func TestCryptoPurchase(t *testing.T) {
	e := newEnv(t)
	w := &fakeWallet{address: buyer, hash: txHash}

	res, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset:      e.dataset,
		Method:       purchasedomain.MethodCrypto,
		Wallet:       w,
		Entitlements: e.cache,
	})
	require.NoError(t, err)
	assert.True(t, res.Entitled)
	assert.Equal(t, txHash, res.TransactionReference)
	assert.Equal(t, strings.ToLower(buyer), res.Purchase.BuyerAddress)
	assert.True(t, res.Purchase.Confirmed)
	assert.Equal(t, "ETH", res.Purchase.Currency)

	assert.Equal(t, common.HexToAddress(receiver), w.to)
	assert.Equal(t, "500000000000000000000", w.wei.String())
	assert.Equal(t, int64(1), e.purchaseCount(t))
	assert.Equal(t, 1, e.counter.calls)
	assert.True(t, e.entitled(buyer))

	owned, err := e.purchases.HasPurchased(context.Background(), e.dataset.ID, buyer)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestCryptoWalletNotConnected(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)

	for _, w := range []orchestrator.Wallet{nil, &fakeWallet{hash: txHash}} {
		_, err := o.Purchase(context.Background(), orchestrator.Request{
			Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: w, Entitlements: e.cache,
		})
		assert.ErrorIs(t, err, orchestrator.ErrWalletNotConnected)
		if fw, ok := w.(*fakeWallet); ok {
			assert.Zero(t, fw.calls)
		}
	}
	assert.Zero(t, e.purchaseCount(t))
	assert.Zero(t, e.counter.calls)
}

func TestCryptoFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "rejected", err: fmt.Errorf("%w: denied", wallet.ErrUserRejected), want: orchestrator.ErrPaymentCancelled},
		{name: "failed", err: &wallet.TransferError{Code: -32000, Message: "insufficient funds"}, want: orchestrator.ErrPaymentFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			w := &fakeWallet{address: buyer, err: tc.err}

			_, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
				Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: w, Entitlements: e.cache,
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, e.purchaseCount(t))
			assert.Zero(t, e.counter.calls)
			assert.False(t, e.entitled(buyer))
		})
	}
}

func TestGatewayPurchaseWithoutWallet(t *testing.T) {
	e := newEnv(t)
	source := &verifiedSource{}

	res, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset:      e.dataset,
		Method:       purchasedomain.MethodGateway,
		Checkout:     checkout(source, signedCheckout("pay_xyz")),
		Entitlements: e.cache,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), source.last.Amount)
	assert.Equal(t, "INR", source.last.Currency)
	assert.True(t, strings.HasPrefix(res.Purchase.BuyerAddress, "gateway_"))
	assert.Equal(t, "pay_xyz", res.TransactionReference)
	require.NotNil(t, res.Purchase.OrderID)
	assert.Equal(t, "order_abc", *res.Purchase.OrderID)
	assert.True(t, res.Purchase.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, res.Entitled)
	assert.Equal(t, int64(1), e.purchaseCount(t))
}

func TestGatewayDismissed(t *testing.T) {
	e := newEnv(t)
	dismiss := gateway.CheckoutFunc(func(context.Context, gatewaydomain.Order) (*gatewaydomain.CheckoutResult, error) {
		return nil, gatewaydomain.ErrPaymentCancelled
	})

	_, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset:       e.dataset,
		Method:        purchasedomain.MethodGateway,
		WalletAddress: buyer,
		Checkout:      checkout(&verifiedSource{}, dismiss),
		Entitlements:  e.cache,
	})
	assert.ErrorIs(t, err, orchestrator.ErrPaymentCancelled)
	assert.False(t, e.entitled(buyer))
	assert.Zero(t, e.purchaseCount(t))
}

func TestGatewayBadSignature(t *testing.T) {
	e := newEnv(t)
	forged := gateway.CheckoutFunc(func(_ context.Context, order gatewaydomain.Order) (*gatewaydomain.CheckoutResult, error) {
		return &gatewaydomain.CheckoutResult{PaymentID: "pay_xyz", OrderID: order.ID, Signature: "00"}, nil
	})

	_, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodGateway, Checkout: checkout(&verifiedSource{}, forged),
	})
	assert.ErrorIs(t, err, orchestrator.ErrPaymentFailed)
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)
	assert.Zero(t, e.purchaseCount(t))
}

func TestGatewayUnverifiedOrderGrantsNothing(t *testing.T) {
	e := newEnv(t)
	session := &gateway.Session{
		Source:   gateway.NewFallbackSource(true, nil),
		Checkout: signedCheckout("pay_mock"),
	}

	res, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodGateway, WalletAddress: buyer, Checkout: session, Entitlements: e.cache,
	})
	require.NoError(t, err)
	assert.False(t, res.Entitled)
	assert.False(t, res.Purchase.Confirmed)
	assert.False(t, res.Purchase.Verified)
	assert.False(t, e.entitled(buyer))

	owned, err := e.purchases.HasPurchased(context.Background(), e.dataset.ID, buyer)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestAlreadyPurchased(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)
	req := orchestrator.Request{Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Entitlements: e.cache}

	req.Wallet = &fakeWallet{address: buyer, hash: txHash}
	_, err := o.Purchase(context.Background(), req)
	require.NoError(t, err)

	second := &fakeWallet{address: buyer, hash: "0x" + strings.Repeat("ab", 32)}
	req.Wallet = second
	_, err = o.Purchase(context.Background(), req)
	assert.ErrorIs(t, err, orchestrator.ErrAlreadyPurchased)
	assert.Zero(t, second.calls)
	assert.Equal(t, int64(1), e.purchaseCount(t))
}

func TestReplayIsIdempotent(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)
	req := orchestrator.Request{
		Dataset:  e.dataset,
		Method:   purchasedomain.MethodGateway,
		Checkout: checkout(&verifiedSource{}, signedCheckout("pay_xyz")),
	}

	first, err := o.Purchase(context.Background(), req)
	require.NoError(t, err)
	second, err := o.Purchase(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)
	assert.Equal(t, int64(1), e.purchaseCount(t))
	assert.Equal(t, 1, e.counter.calls)
}

func TestCounterFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.counter.err = errors.New("deadlock")

	res, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: &fakeWallet{address: buyer, hash: txHash},
	})
	require.NoError(t, err)
	assert.True(t, res.Entitled)
	assert.Equal(t, int64(1), e.purchaseCount(t))
}

func TestRecordFailure(t *testing.T) {
	e := newEnv(t)
	e.purchases = failingPurchases{Service: e.purchases}

	_, err := e.orchestrator(t, nil).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: &fakeWallet{address: buyer, hash: txHash}, Entitlements: e.cache,
	})
	assert.ErrorIs(t, err, orchestrator.ErrPurchaseRecordFailed)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, e.entitled(buyer))
	assert.Zero(t, e.counter.calls)
}

func TestPurchaseInProgress(t *testing.T) {
	e := newEnv(t)
	w := &fakeWallet{address: buyer, hash: txHash}

	_, err := e.orchestrator(t, &fakeLock{held: true}).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: w,
	})
	assert.ErrorIs(t, err, orchestrator.ErrPurchaseInProgress)
	assert.Zero(t, w.calls)

	_, err = e.orchestrator(t, &fakeLock{}).Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: w,
	})
	require.NoError(t, err)
}

func TestInvalidRequests(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)

	free := *e.dataset
	free.Price = decimal.Zero
	_, err := o.Purchase(context.Background(), orchestrator.Request{Dataset: &free, Method: purchasedomain.MethodCrypto})
	assert.ErrorIs(t, err, orchestrator.ErrInvalidDataset)

	_, err = o.Purchase(context.Background(), orchestrator.Request{Method: purchasedomain.MethodCrypto})
	assert.ErrorIs(t, err, orchestrator.ErrInvalidDataset)

	_, err = o.Purchase(context.Background(), orchestrator.Request{Dataset: e.dataset, Method: "paypal"})
	assert.ErrorIs(t, err, orchestrator.ErrInvalidMethod)

	_, err = o.Purchase(context.Background(), orchestrator.Request{Dataset: e.dataset, Method: purchasedomain.MethodGateway})
	assert.ErrorIs(t, err, orchestrator.ErrCheckoutUnavailable)

	_, err = orchestrator.NewWithOptions(orchestrator.Options{Log: zaptest.NewLogger(t), ReceivingAddress: "nope"})
	assert.Error(t, err)
}

func TestReplayOfOwnedReference(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)
	req := orchestrator.Request{
		Dataset:   e.dataset,
		Method:    purchasedomain.MethodCrypto,
		Wallet:    &fakeWallet{address: buyer, hash: txHash},
		Reference: txHash,
	}

	first, err := o.Purchase(context.Background(), req)
	require.NoError(t, err)
	second, err := o.Purchase(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)
	assert.Equal(t, 1, e.counter.calls)
}

func TestReferenceReusedByAnotherBuyer(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)
	_, err := o.Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: &fakeWallet{address: buyer, hash: txHash},
	})
	require.NoError(t, err)

	other := "0x00000000000000000000000000000000000000b2"
	res, err := o.Purchase(context.Background(), orchestrator.Request{
		Dataset:      e.dataset,
		Method:       purchasedomain.MethodCrypto,
		Wallet:       &fakeWallet{address: other, hash: txHash},
		Reference:    txHash,
		Entitlements: e.cache,
	})
	assert.ErrorIs(t, err, orchestrator.ErrReferenceInUse)
	assert.Equal(t, orchestrator.Result{}, res)
	assert.False(t, e.entitled(other))
	assert.Equal(t, int64(1), e.purchaseCount(t))
	assert.Equal(t, 1, e.counter.calls)
}

func TestReferenceReusedForAnotherDataset(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Exec(
		`INSERT INTO datasets (id, name, slug, category, price, uploader_address, content_id, created_at)
		 VALUES (8, 'Yields', 'yields', 'Finance', 500, '0xuploader', 'bafz', ?)`, time.Now().UTC(),
	).Error)
	o := e.orchestrator(t, nil)

	_, err := o.Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodCrypto, Wallet: &fakeWallet{address: buyer, hash: txHash},
	})
	require.NoError(t, err)

	second := &datasetdomain.Dataset{ID: 8, Name: "Yields", Price: decimal.NewFromInt(500), Currency: "ETH"}
	_, err = o.Purchase(context.Background(), orchestrator.Request{
		Dataset:      second,
		Method:       purchasedomain.MethodCrypto,
		Wallet:       &fakeWallet{address: buyer, hash: txHash},
		Reference:    txHash,
		Entitlements: e.cache,
	})
	assert.ErrorIs(t, err, orchestrator.ErrReferenceInUse)
	entitled, cached := e.cache.Get(second.ID, purchaseservice.NormalizeBuyer(buyer))
	assert.False(t, entitled && cached)
	assert.Equal(t, int64(1), e.purchaseCount(t))
}

func TestWalletlessReplayOfWalletPayment(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, nil)
	session := checkout(&verifiedSource{}, signedCheckout("pay_xyz"))

	_, err := o.Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodGateway, Checkout: session, WalletAddress: buyer,
	})
	require.NoError(t, err)

	_, err = o.Purchase(context.Background(), orchestrator.Request{
		Dataset: e.dataset, Method: purchasedomain.MethodGateway, Checkout: session,
	})
	assert.ErrorIs(t, err, orchestrator.ErrReferenceInUse)
	assert.Equal(t, int64(1), e.purchaseCount(t))
}
