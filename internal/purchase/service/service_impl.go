package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/purchase/domain"
	"github.com/smallbiznis/dataverse/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("purchase.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

const buyerListLimit = 500

// NormalizeBuyer lower-cases wallet addresses and synthetic buyer ids alike.
func NormalizeBuyer(buyer string) string {
	return strings.ToLower(strings.TrimSpace(buyer))
}

func (s *Service) Record(ctx context.Context, req domain.RecordPurchaseRequest) (domain.Purchase, error) {
	if req.DatasetID == 0 {
		return domain.Purchase{}, domain.ErrInvalidDataset
	}
	buyer := NormalizeBuyer(req.BuyerAddress)
	if buyer == "" {
		return domain.Purchase{}, domain.ErrInvalidBuyer
	}
	method, err := domain.ParsePaymentMethod(string(req.Method))
	if err != nil {
		return domain.Purchase{}, err
	}
	reference := strings.TrimSpace(req.TxReference)
	if reference == "" {
		return domain.Purchase{}, domain.ErrInvalidReference
	}
	if req.Amount.IsNegative() {
		return domain.Purchase{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return domain.Purchase{}, domain.ErrInvalidCurrency
	}

	purchase := domain.Purchase{
		ID:            s.genID.Generate(),
		DatasetID:     req.DatasetID,
		BuyerAddress:  buyer,
		PaymentMethod: method,
		TxReference:   reference,
		Confirmed:     req.Confirmed,
		Verified:      req.Verified,
		Amount:        req.Amount,
		Currency:      currency,
		CreatedAt:     s.clock.Now(),
	}
	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		purchase.OrderID = &orderID
	}

	if err := s.repo.Insert(ctx, s.db, &purchase); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByReference(ctx, s.db, method, reference)
			if findErr != nil {
				return domain.Purchase{}, fmt.Errorf("load replayed purchase: %w", findErr)
			}
			if existing != nil {
				s.log.Info("purchase replay ignored",
					zap.String("purchase_id", existing.ID.String()),
					zap.String("payment_method", string(method)),
				)
				return *existing, domain.ErrAlreadyRecorded
			}
		}
		return domain.Purchase{}, err
	}

	s.log.Info("purchase recorded",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("dataset_id", purchase.DatasetID.String()),
		zap.String("payment_method", string(method)),
		zap.Bool("confirmed", purchase.Confirmed),
		zap.Bool("verified", purchase.Verified),
	)
	return purchase, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Purchase, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.Purchase{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Purchase{}, err
	}
	if item == nil {
		return domain.Purchase{}, domain.ErrNotFound
	}
	return *item, nil
}

// HasPurchased is recomputed from storage on every call.
func (s *Service) HasPurchased(ctx context.Context, datasetID snowflake.ID, buyer string) (bool, error) {
	found, err := s.FindConfirmed(ctx, datasetID, buyer)
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

func (s *Service) FindConfirmed(ctx context.Context, datasetID snowflake.ID, buyer string) (*domain.Purchase, error) {
	if datasetID == 0 {
		return nil, domain.ErrInvalidDataset
	}
	buyer = NormalizeBuyer(buyer)
	if buyer == "" {
		return nil, domain.ErrInvalidBuyer
	}
	return s.repo.FindConfirmed(ctx, s.db, datasetID, buyer)
}

func (s *Service) ListByBuyer(ctx context.Context, buyer string) ([]domain.Purchase, error) {
	buyer = NormalizeBuyer(buyer)
	if buyer == "" {
		return nil, domain.ErrInvalidBuyer
	}
	items, err := s.repo.ListByBuyer(ctx, s.db, buyer, buyerListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Purchase, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

// IsReplay reports whether err marks an idempotent replay rather than a failure.
func IsReplay(err error) bool {
	return errors.Is(err, domain.ErrAlreadyRecorded)
}
