package search

import "homematch/propertysearch/internal/domain"

// LimitPerProvider computes how many listings each provider is asked for.
// A fixed per-provider cap is used verbatim when set; otherwise the total is
// split evenly, rounded up, and never drops below the configured floor so
// thin providers still contribute a useful sample.
func LimitPerProvider(s domain.SearchSettings, activeProviders int) int {
	if activeProviders <= 0 {
		return 0
	}
	s = domain.NormalizeSearchSettings(s)
	if s.MaxPropertiesPerProvider != nil {
		return *s.MaxPropertiesPerProvider
	}
	perProvider := (s.MaxPropertiesTotal + activeProviders - 1) / activeProviders
	if perProvider < s.MinPropertiesPerProvider {
		perProvider = s.MinPropertiesPerProvider
	}
	return perProvider
}
