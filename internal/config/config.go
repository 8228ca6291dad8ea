package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the environment configuration and the hot-reloaded marketplace settings.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewMarketplaceConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	FrontendURL string

	OTLPEndpoint string
	OtelEnabled  bool
	LogLevel     string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBSlowQuery       time.Duration

	RedisAddr     string
	RedisPassword string
	PurchaseLock  time.Duration

	Gateway GatewayConfig
	Chain   ChainConfig
	IPFS    IPFSConfig
}

// GatewayConfig configures the hosted payment gateway.
type GatewayConfig struct {
	Provider              string
	KeyID                 string
	KeySecret             string
	BaseURL               string
	Currency              string
	BackendURL            string
	AllowUnverifiedOrders bool
}

// Configured reports whether server-side gateway credentials are present.
func (g GatewayConfig) Configured() bool {
	return strings.TrimSpace(g.KeyID) != "" && strings.TrimSpace(g.KeySecret) != ""
}

// ChainConfig configures the on-chain payment path.
type ChainConfig struct {
	RPCURL           string
	ReceivingAddress string
	ChainID          int64
	VerifyTransfers  bool
}

// IPFSConfig configures the content store.
type IPFSConfig struct {
	APIURL     string
	GatewayURL string
	AuthToken  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "dataverse"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":"+getenv("PORT", "3001")),
		FrontendURL:  getenv("FRONTEND_URL", "http://localhost:3000"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		OtelEnabled:  getenvBool("OTEL_ENABLED", false),
		LogLevel:     strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "dataverse.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBSlowQuery:       time.Duration(getenvInt("DATABASE_SLOW_QUERY_MS", 200)) * time.Millisecond,

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		PurchaseLock:  time.Duration(getenvInt("PURCHASE_LOCK_SECONDS", 120)) * time.Second,

		Gateway: GatewayConfig{
			Provider:              strings.ToLower(getenv("GATEWAY_PROVIDER", "razorpay")),
			KeyID:                 strings.TrimSpace(getenv("RAZORPAY_KEY_ID", "")),
			KeySecret:             strings.TrimSpace(getenv("RAZORPAY_KEY_SECRET", "")),
			BaseURL:               getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Currency:              strings.ToUpper(getenv("GATEWAY_CURRENCY", "INR")),
			BackendURL:            strings.TrimSpace(getenv("GATEWAY_BACKEND_URL", "")),
			AllowUnverifiedOrders: getenvBool("GATEWAY_ALLOW_UNVERIFIED_ORDERS", false),
		},
		Chain: ChainConfig{
			RPCURL:           strings.TrimSpace(getenv("ETH_RPC_URL", "")),
			ReceivingAddress: strings.TrimSpace(getenv("ETH_RECEIVING_ADDRESS", "0x742d35Cc6635C0532925a3b8D9C3A46e8D2b40c1")),
			ChainID:          getenvInt64("ETH_CHAIN_ID", 1),
			VerifyTransfers:  getenvBool("ETH_VERIFY_TRANSFERS", true),
		},
		IPFS: IPFSConfig{
			APIURL:     getenv("IPFS_API_URL", "http://127.0.0.1:5001"),
			GatewayURL: strings.TrimRight(getenv("IPFS_GATEWAY_URL", "https://ipfs.io"), "/"),
			AuthToken:  strings.TrimSpace(getenv("IPFS_AUTH_TOKEN", "")),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
