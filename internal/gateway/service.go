package gateway

import (
	"context"
	"strings"

	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/config"
	"github.com/smallbiznis/dataverse/internal/gateway/adapters"
	"github.com/smallbiznis/dataverse/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config   config.Config
	Registry *adapters.Registry
	Log      *zap.Logger
	Clock    clock.Clock `optional:"true"`
}

// Service is the server-side gateway integration.
type Service struct {
	adapter  domain.Adapter
	fallback *FallbackSource
	backend  *BackendSource
	currency string
	log      *zap.Logger
}

func NewService(p Params) (*Service, error) {
	log := p.Log.Named("gateway.service")
	gw := p.Config.Gateway

	svc := &Service{
		fallback: NewFallbackSource(gw.AllowUnverifiedOrders, p.Clock),
		currency: strings.ToUpper(gw.Currency),
		log:      log,
	}
	if svc.currency == "" {
		svc.currency = "INR"
	}
	if gw.BackendURL != "" {
		svc.backend = NewBackendSource(gw.BackendURL, 0)
	}

	if !gw.Configured() {
		log.Warn("payment gateway credentials missing",
			zap.String("provider", gw.Provider),
			zap.Bool("unverified_orders", gw.AllowUnverifiedOrders),
		)
		return svc, nil
	}

	adapter, err := p.Registry.NewAdapter(gw.Provider, domain.AdapterConfig{
		KeyID:     gw.KeyID,
		KeySecret: gw.KeySecret,
		BaseURL:   gw.BaseURL,
	})
	if err != nil {
		log.Error("payment gateway adapter not built",
			zap.String("provider", gw.Provider),
			zap.Strings("available", p.Registry.Providers()),
			zap.Error(err),
		)
		return nil, err
	}
	svc.adapter = adapter
	log.Info("payment gateway configured", zap.String("provider", adapter.Provider()))
	return svc, nil
}

// NewServiceWith builds a service around an explicit adapter; adapter may be nil.
func NewServiceWith(adapter domain.Adapter, fallback *FallbackSource, currency string, log *zap.Logger) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{adapter: adapter, fallback: fallback, currency: strings.ToUpper(currency), log: log.Named("gateway.service")}
}

// Configured reports whether a server-side secret is available.
func (s *Service) Configured() bool {
	return s.adapter != nil
}

func (s *Service) Currency() string {
	return s.currency
}

func (s *Service) KeyID() string {
	if s.adapter == nil {
		return ""
	}
	return s.adapter.KeyID()
}

// CreateOrder uses the configured adapter, then the trusted backend, then unverified orders when allowed.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if req.Currency == "" {
		req.Currency = s.currency
	}

	var primary domain.OrderSource
	switch {
	case s.adapter != nil:
		primary = s.adapter
	case s.backend != nil:
		primary = s.backend
	case !s.fallback.Enabled():
		return nil, domain.ErrMissingCredentials
	}

	chain := &FallbackChain{Primary: primary, Fallback: s.fallback, Log: s.log}
	return chain.CreateOrder(ctx, req)
}

// SessionFor builds a session that verifies a checkout the browser completed.
func (s *Service) SessionFor(result domain.CheckoutResult) (*Session, error) {
	session := &Session{Checkout: CompletedCheckout{Result: result}}
	switch {
	case s.adapter != nil:
		session.Source = KnownOrder{OrderID: result.OrderID, Fetcher: s.adapter}
		session.Secret = s.adapter.Secret()
		session.Payments = s.adapter
	case s.fallback.Enabled():
		session.Source = KnownOrder{OrderID: result.OrderID}
	default:
		return nil, domain.ErrMissingCredentials
	}
	return session, nil
}
