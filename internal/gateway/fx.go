package gateway

import (
	"github.com/smallbiznis/dataverse/internal/gateway/adapters"
	"github.com/smallbiznis/dataverse/internal/gateway/adapters/razorpay"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			razorpay.NewFactory(),
		)
	}),
	fx.Provide(NewService),
)
