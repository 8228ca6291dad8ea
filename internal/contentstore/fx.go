package contentstore

import (
	"github.com/smallbiznis/dataverse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("contentstore",
	fx.Provide(NewBackend),
	fx.Provide(func(b Backend, cfg config.Config, log *zap.Logger) *Client {
		return NewClient(b, cfg.IPFS.GatewayURL, log)
	}),
)

// NewBackend selects the kubo backend unless IPFS_API_URL is "memory".
func NewBackend(cfg config.Config, log *zap.Logger) Backend {
	if cfg.IPFS.APIURL == "memory" {
		log.Warn("using in-memory content store; uploads are lost on restart")
		return NewMemoryBackend()
	}
	return NewKuboBackend(cfg.IPFS.APIURL, cfg.IPFS.AuthToken)
}
