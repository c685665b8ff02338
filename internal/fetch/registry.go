package fetch

import (
	"fmt"

	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
)

// Registry maps platforms to their fetcher implementations.
type Registry struct {
	fetchers map[domain.Platform]ports.Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[domain.Platform]ports.Fetcher{}}
}

// Register adds or replaces the fetcher for its platform.
func (r *Registry) Register(f ports.Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[domain.Platform]ports.Fetcher{}
	}
	r.fetchers[f.Platform()] = f
}

// Resolve returns the fetcher for a platform or an error if none is
// registered.
func (r *Registry) Resolve(platform domain.Platform) (ports.Fetcher, error) {
	if f, ok := r.fetchers[platform]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for platform %s", platform)
}
