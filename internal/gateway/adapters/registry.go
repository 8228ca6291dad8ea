package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/dataverse/internal/gateway/domain"
)

// Registry resolves a configured provider name to the factory that builds its adapter.
type Registry struct {
	byName map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	byName := make(map[string]domain.AdapterFactory, len(factories))
	for _, f := range factories {
		if f == nil {
			continue
		}
		if name := providerKey(f.Provider()); name != "" {
			byName[name] = f
		}
	}
	return &Registry{byName: byName}
}

// Providers lists the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.Adapter, error) {
	var f domain.AdapterFactory
	if r != nil {
		f = r.byName[providerKey(provider)]
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotFound, provider)
	}
	return f.NewAdapter(cfg)
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
