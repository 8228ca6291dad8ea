package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/smallbiznis/dataverse/internal/config"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/internal/gateway"
	gatewaydomain "github.com/smallbiznis/dataverse/internal/gateway/domain"
	"github.com/smallbiznis/dataverse/internal/purchase"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
	purchaseservice "github.com/smallbiznis/dataverse/internal/purchase/service"
	"github.com/smallbiznis/dataverse/internal/ratelimit"
	"github.com/smallbiznis/dataverse/internal/wallet"
	pkglog "github.com/smallbiznis/dataverse/pkg/log"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
	"github.com/smallbiznis/dataverse/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Wallet pays the receiving address in wei; both wallet.Session and wallet.BroadcastedTransfer satisfy it.
type Wallet interface {
	Address() string
	Pay(ctx context.Context, to common.Address, wei *big.Int) (string, error)
}

// Checkout runs a hosted gateway payment; gateway.Session satisfies it.
type Checkout interface {
	Pay(ctx context.Context, req gatewaydomain.OrderRequest) (*gatewaydomain.Completed, error)
}

// DownloadCounter bumps the dataset's popularity counter.
type DownloadCounter interface {
	IncrementDownloads(ctx context.Context, id snowflake.ID) error
}

// Lock guards one in-flight purchase per (dataset, buyer).
type Lock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type chainVerified interface {
	ChainVerified() bool
}

type Request struct {
	Dataset *datasetdomain.Dataset
	Method  purchasedomain.PaymentMethod
	// WalletAddress identifies a gateway buyer; crypto purchases use the wallet's own address.
	WalletAddress string
	Wallet        Wallet
	Checkout      Checkout
	// Currency overrides the gateway currency.
	Currency string
	// Reference is the payment reference when the payment happened before the request
	// (a broadcast tx hash or a completed checkout). A replay of the recorded reference is not a duplicate.
	Reference string
	// Entitlements is the caller's session cache; nil skips caching.
	Entitlements *purchase.EntitlementCache
}

type Result struct {
	Purchase             purchasedomain.Purchase
	TransactionReference string
	Entitled             bool
	// Replayed is set when the payment reference was already recorded.
	Replayed bool
}

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Purchases purchasedomain.Service
	Datasets  datasetdomain.Service
	Locker    *ratelimit.Locker  `optional:"true"`
	Metrics   *telemetry.Metrics `optional:"true"`
}

type Orchestrator struct {
	log       *zap.Logger
	purchases purchasedomain.Service
	counter   DownloadCounter
	lock      Lock
	lockTTL   time.Duration
	receiver  common.Address
	currency  string
	metrics   *telemetry.Metrics
}

func New(p Params) (*Orchestrator, error) {
	opts := Options{
		Log:              p.Log,
		Purchases:        p.Purchases,
		Counter:          p.Datasets,
		ReceivingAddress: p.Config.Chain.ReceivingAddress,
		GatewayCurrency:  p.Config.Gateway.Currency,
		LockTTL:          p.Config.PurchaseLock,
		Metrics:          p.Metrics,
	}
	if p.Locker != nil {
		opts.Lock = p.Locker
	}
	return NewWithOptions(opts)
}

type Options struct {
	Log              *zap.Logger
	Purchases        purchasedomain.Service
	Counter          DownloadCounter
	Lock             Lock
	LockTTL          time.Duration
	ReceivingAddress string
	GatewayCurrency  string
	Metrics          *telemetry.Metrics
}

func NewWithOptions(opts Options) (*Orchestrator, error) {
	if !common.IsHexAddress(opts.ReceivingAddress) {
		return nil, fmt.Errorf("invalid receiving address %q", opts.ReceivingAddress)
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.GatewayCurrency))
	if currency == "" {
		currency = "INR"
	}
	return &Orchestrator{
		log:       opts.Log.Named("orchestrator"),
		purchases: opts.Purchases,
		counter:   opts.Counter,
		lock:      opts.Lock,
		lockTTL:   ttl,
		receiver:  common.HexToAddress(opts.ReceivingAddress),
		currency:  currency,
		metrics:   opts.Metrics,
	}, nil
}

// ReceivingAddress is where crypto payments are sent.
func (o *Orchestrator) ReceivingAddress() common.Address {
	return o.receiver
}

// Purchase runs one attempt. Every returned error is terminal for the attempt and leaves no purchase behind.
func (o *Orchestrator) Purchase(ctx context.Context, req Request) (Result, error) {
	ds := req.Dataset
	if ds == nil || ds.ID == 0 || !ds.Price.IsPositive() {
		return Result{}, ErrInvalidDataset
	}

	var buyer string
	switch req.Method {
	case purchasedomain.MethodCrypto:
		if req.Wallet == nil || strings.TrimSpace(req.Wallet.Address()) == "" {
			o.metrics.RecordPurchaseFailure(string(req.Method), "wallet_not_connected")
			return Result{}, ErrWalletNotConnected
		}
		buyer = purchaseservice.NormalizeBuyer(req.Wallet.Address())
	case purchasedomain.MethodGateway:
		if req.Checkout == nil {
			return Result{}, ErrCheckoutUnavailable
		}
		if common.IsHexAddress(strings.TrimSpace(req.WalletAddress)) {
			buyer = purchaseservice.NormalizeBuyer(req.WalletAddress)
		}
	default:
		return Result{}, ErrInvalidMethod
	}

	ctx = correlation.WithPurchase(ctx, ds.ID.String(), buyer)
	log := pkglog.WithContext(ctx, o.log).With(zap.String("payment_method", string(req.Method)))

	if buyer != "" {
		owned, err := o.purchases.FindConfirmed(ctx, ds.ID, buyer)
		if err != nil {
			return Result{}, err
		}
		if owned != nil {
			req.Entitlements.Set(ds.ID, buyer, true)
			if !isReplayOf(owned, req.Reference) {
				return Result{}, ErrAlreadyPurchased
			}
		}

		release, err := o.acquire(ctx, ds.ID, buyer)
		if err != nil {
			return Result{}, err
		}
		defer release()
	}

	var (
		record purchasedomain.RecordPurchaseRequest
		err    error
	)
	switch req.Method {
	case purchasedomain.MethodCrypto:
		record, err = o.payCrypto(ctx, ds, req.Wallet)
	default:
		record, err = o.payGateway(ctx, ds, req, buyer)
	}
	if err != nil {
		o.metrics.RecordPurchaseFailure(string(req.Method), failureReason(err))
		log.Info("payment not completed", zap.Error(err))
		return Result{}, err
	}

	walletBuyer := buyer
	if buyer == "" {
		buyer = syntheticBuyerPrefix + uuid.NewString()
	}
	record.DatasetID = ds.ID
	record.BuyerAddress = buyer
	record.Method = req.Method

	stored, err := o.purchases.Record(ctx, record)
	replayed := purchaseservice.IsReplay(err)
	if err != nil && !replayed {
		o.metrics.RecordPurchaseFailure(string(req.Method), "record_failed")
		log.Error("payment succeeded but purchase was not recorded",
			zap.String("tx_reference", record.TxReference),
			zap.String("buyer", buyer),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: %w", ErrPurchaseRecordFailed, err)
	}
	if replayed && !replayBelongsTo(stored, ds.ID, walletBuyer) {
		o.metrics.RecordPurchaseFailure(string(req.Method), "reference_in_use")
		log.Warn("payment reference already recorded for another purchase",
			zap.String("tx_reference", record.TxReference),
		)
		return Result{}, ErrReferenceInUse
	}

	if !replayed {
		amount, _ := stored.Amount.Float64()
		o.metrics.RecordPurchase(string(stored.PaymentMethod), stored.Currency, stored.Confirmed, amount)
		if err := o.counter.IncrementDownloads(ctx, ds.ID); err != nil {
			o.metrics.RecordCounterFailure()
			log.Warn("download counter not updated", zap.Error(err))
		}
	}

	entitled := stored.Confirmed
	if entitled {
		req.Entitlements.Set(ds.ID, stored.BuyerAddress, true)
	}

	log.Info("purchase completed",
		zap.String("purchase_id", stored.ID.String()),
		zap.Bool("entitled", entitled),
		zap.Bool("replayed", replayed),
	)
	return Result{
		Purchase:             stored,
		TransactionReference: stored.TxReference,
		Entitled:             entitled,
		Replayed:             replayed,
	}, nil
}

func (o *Orchestrator) payCrypto(ctx context.Context, ds *datasetdomain.Dataset, w Wallet) (purchasedomain.RecordPurchaseRequest, error) {
	wei := wallet.ToWei(ds.Price)
	hash, err := w.Pay(ctx, o.receiver, wei)
	if err != nil {
		if errors.Is(err, wallet.ErrUserRejected) {
			return purchasedomain.RecordPurchaseRequest{}, fmt.Errorf("%w: %w", ErrPaymentCancelled, err)
		}
		if errors.Is(err, wallet.ErrNotConnected) {
			return purchasedomain.RecordPurchaseRequest{}, ErrWalletNotConnected
		}
		return purchasedomain.RecordPurchaseRequest{}, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	verified := false
	if cv, ok := w.(chainVerified); ok {
		verified = cv.ChainVerified()
	}
	currency := ds.Currency
	if currency == "" {
		currency = "ETH"
	}
	return purchasedomain.RecordPurchaseRequest{
		TxReference: hash,
		Confirmed:   true,
		Verified:    verified,
		Amount:      ds.Price,
		Currency:    currency,
	}, nil
}

func (o *Orchestrator) payGateway(ctx context.Context, ds *datasetdomain.Dataset, req Request, buyer string) (purchasedomain.RecordPurchaseRequest, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = o.currency
	}

	completed, err := req.Checkout.Pay(ctx, gatewaydomain.OrderRequest{
		Amount:       gateway.MinorUnits(ds.Price),
		Currency:     currency,
		DatasetID:    ds.ID.String(),
		DatasetName:  ds.Name,
		BuyerAddress: buyer,
	})
	if err != nil {
		switch {
		case errors.Is(err, gatewaydomain.ErrPaymentCancelled):
			return purchasedomain.RecordPurchaseRequest{}, fmt.Errorf("%w: %w", ErrPaymentCancelled, err)
		case errors.Is(err, gatewaydomain.ErrMissingCredentials):
			return purchasedomain.RecordPurchaseRequest{}, err
		default:
			return purchasedomain.RecordPurchaseRequest{}, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
	}

	return purchasedomain.RecordPurchaseRequest{
		TxReference: completed.PaymentID,
		OrderID:     completed.OrderID,
		Confirmed:   completed.Verified,
		Verified:    completed.Verified,
		Amount:      gateway.FromMinorUnits(completed.Amount),
		Currency:    completed.Currency,
	}, nil
}

func (o *Orchestrator) acquire(ctx context.Context, datasetID snowflake.ID, buyer string) (func(), error) {
	if o.lock == nil {
		return func() {}, nil
	}
	key := ratelimit.PurchaseKey(datasetID.Int64(), buyer)
	token, ok, err := o.lock.TryLock(ctx, key, o.lockTTL)
	if err != nil {
		o.log.Warn("purchase lock unavailable, continuing without it", zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrPurchaseInProgress
	}
	return func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
			o.log.Warn("purchase lock release failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func isReplayOf(p *purchasedomain.Purchase, reference string) bool {
	reference = strings.TrimSpace(reference)
	return reference != "" && strings.EqualFold(p.TxReference, reference)
}

const syntheticBuyerPrefix = "gateway_"

// replayBelongsTo reports whether a purchase stored under the same reference was made for this dataset and buyer.
// Attempts without a wallet only match purchases that were stored without one.
func replayBelongsTo(p purchasedomain.Purchase, datasetID snowflake.ID, buyer string) bool {
	if p.DatasetID != datasetID {
		return false
	}
	if buyer == "" {
		return strings.HasPrefix(p.BuyerAddress, syntheticBuyerPrefix)
	}
	return strings.EqualFold(p.BuyerAddress, buyer)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrPaymentCancelled):
		return "cancelled"
	case errors.Is(err, ErrWalletNotConnected):
		return "wallet_not_connected"
	case errors.Is(err, gatewaydomain.ErrMissingCredentials):
		return "configuration"
	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, gatewaydomain.ErrOrderCreationFailed):
		return "order_creation_failed"
	default:
		return "failed"
	}
}
