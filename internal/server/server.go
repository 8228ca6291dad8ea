package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/smallbiznis/dataverse/internal/clock"
	"github.com/smallbiznis/dataverse/internal/config"
	"github.com/smallbiznis/dataverse/internal/contentstore"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	"github.com/smallbiznis/dataverse/internal/gateway"
	"github.com/smallbiznis/dataverse/internal/observability"
	obsmiddleware "github.com/smallbiznis/dataverse/internal/observability/logger"
	obstracing "github.com/smallbiznis/dataverse/internal/observability/tracing"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	"github.com/smallbiznis/dataverse/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
	"github.com/smallbiznis/dataverse/internal/ratelimit"
	"github.com/smallbiznis/dataverse/internal/wallet"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(obsCfg observability.Config, cfg config.Config, metrics *telemetry.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.FrontendURL))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(metricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if !cfg.IsProduction() {
		pprof.Register(r)
	}

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	datasetSvc   datasetdomain.Service
	purchaseSvc  purchasedomain.Service
	gatewaySvc   *gateway.Service
	orchestrator *orchestrator.Orchestrator
	verifier     *wallet.Verifier
	content      *contentstore.Client
	receipts     pdf.Provider
	limiter      *ratelimit.ClientLimiter
	metrics      *telemetry.Metrics
	clock        clock.Clock
	log          *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DatasetSvc   datasetdomain.Service
	PurchaseSvc  purchasedomain.Service
	GatewaySvc   *gateway.Service
	Orchestrator *orchestrator.Orchestrator
	Verifier     *wallet.Verifier
	Content      *contentstore.Client
	Receipts     pdf.Provider
	Limiter      *ratelimit.ClientLimiter
	Log          *zap.Logger
	Metrics      *telemetry.Metrics `optional:"true"`
	Clock        clock.Clock        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		datasetSvc:   p.DatasetSvc,
		purchaseSvc:  p.PurchaseSvc,
		gatewaySvc:   p.GatewaySvc,
		orchestrator: p.Orchestrator,
		verifier:     p.Verifier,
		content:      p.Content,
		receipts:     p.Receipts,
		limiter:      p.Limiter,
		metrics:      p.Metrics,
		clock:        p.Clock,
		log:          p.Log.Named("http"),
	}
	if svc.clock == nil {
		svc.clock = clock.New()
	}

	svc.engine.MaxMultipartMemory = 32 << 20

	svc.registerRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.Health)

	api := s.engine.Group("/api")
	{
		api.POST("/create-order", s.RateLimit("create-order"), s.CreateOrder)
		api.POST("/verify-payment", s.RateLimit("verify-payment"), s.VerifyPayment)
		api.GET("/purchase-status/:dataset_id/:buyer_address", s.PurchaseStatus)

		api.POST("/purchases/crypto", s.RateLimit("purchase-crypto"), s.CreateCryptoPurchase)
		api.GET("/purchases/:id", s.GetPurchase)
		api.GET("/purchases/:id/receipt", s.DownloadReceipt)

		api.GET("/categories", s.ListCategories)

		datasets := api.Group("/datasets")
		datasets.GET("", s.ListDatasets)
		datasets.POST("", s.RateLimit("dataset-upload"), s.CreateDataset)
		datasets.GET("/:id", s.GetDataset)
		datasets.GET("/:id/download", s.DownloadDataset)

		users := api.Group("/users/:address")
		users.GET("/datasets", s.ListUserDatasets)
		users.GET("/purchases", s.ListUserPurchases)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"type":    "not_found",
			"message": "endpoint not found",
			"path":    c.Request.URL.Path,
		}})
	})
}

func corsMiddleware(origin string) gin.HandlerFunc {
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	})
	return func(c *gin.Context) {
		handler.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
