package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MarketplaceConfig holds catalog rules that operators may change without a restart.
type MarketplaceConfig struct {
	Categories       []string `mapstructure:"categories"`
	AllowedFileTypes []string `mapstructure:"allowedFileTypes"`
	MaxUploadBytes   int64    `mapstructure:"maxUploadBytes"`
	PreviewRows      int      `mapstructure:"previewRows"`
}

func DefaultMarketplaceConfig() MarketplaceConfig {
	return MarketplaceConfig{
		Categories:       []string{"Business", "Science", "Finance", "Technology", "Healthcare", "Education", "Other"},
		AllowedFileTypes: []string{"text/csv", "application/json"},
		MaxUploadBytes:   100 * 1024 * 1024,
		PreviewRows:      10,
	}
}

// HasCategory reports whether name is one of the configured categories.
func (c MarketplaceConfig) HasCategory(name string) bool {
	for _, category := range c.Categories {
		if strings.EqualFold(category, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// AllowsFileType reports whether the MIME type may be uploaded.
func (c MarketplaceConfig) AllowsFileType(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range c.AllowedFileTypes {
		if strings.ToLower(allowed) == contentType {
			return true
		}
	}
	return false
}

type MarketplaceConfigHolder struct {
	current atomic.Value // holds MarketplaceConfig
}

// NewStaticMarketplaceConfigHolder returns a holder that never reloads.
func NewStaticMarketplaceConfigHolder(cfg MarketplaceConfig) *MarketplaceConfigHolder {
	holder := &MarketplaceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMarketplaceConfigHolder() (*MarketplaceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("marketplace")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/dataverse")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DATAVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMarketplaceConfig()
	v.SetDefault("marketplace.categories", defaults.Categories)
	v.SetDefault("marketplace.allowedFileTypes", defaults.AllowedFileTypes)
	v.SetDefault("marketplace.maxUploadBytes", defaults.MaxUploadBytes)
	v.SetDefault("marketplace.previewRows", defaults.PreviewRows)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var cfg MarketplaceConfig
	if err := v.UnmarshalKey("marketplace", &cfg); err != nil {
		return nil, err
	}
	if err := validateMarketplaceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMarketplaceConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MarketplaceConfig
		if err := v.UnmarshalKey("marketplace", &updated); err != nil {
			log.Printf("[marketplace-config] reload failed: %v", err)
			return
		}
		if err := validateMarketplaceConfig(updated); err != nil {
			log.Printf("[marketplace-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[marketplace-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MarketplaceConfigHolder) Get() MarketplaceConfig {
	return h.current.Load().(MarketplaceConfig)
}

func validateMarketplaceConfig(cfg MarketplaceConfig) error {
	if len(cfg.Categories) == 0 {
		return errors.New("marketplace.categories cannot be empty")
	}
	if len(cfg.AllowedFileTypes) == 0 {
		return errors.New("marketplace.allowedFileTypes cannot be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("marketplace.maxUploadBytes must be positive")
	}
	if cfg.PreviewRows < 0 {
		return errors.New("marketplace.previewRows cannot be negative")
	}
	return nil
}
