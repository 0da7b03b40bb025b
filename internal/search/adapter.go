package search

import (
	"context"
	"errors"

	"homematch/propertysearch/internal/domain"
)

var (
	ErrNoProviders     = errors.New("no listing providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotConfigured   = errors.New("provider is not configured")
)

// Adapter is one provider's normalized search surface. Search returns
// canonical listings only; an error means the aggregator records the provider
// in the per-provider error bucket instead of the result set.
type Adapter interface {
	Key() domain.ProviderKey
	Info() domain.ProviderInfo
	Search(ctx context.Context, params domain.SearchParams) (domain.ProviderPage, error)
	TestConnection(ctx context.Context) domain.ConnectionStatus
}
