package domain

// ProviderSettings is one persisted row of admin-managed provider
// configuration. APIKey and APISecret are empty when the provider has never
// been configured; AdditionalConfig carries provider-specific extras such as
// the Bridge MLS dataset name. The aggregation layer reads these rows but
// never writes them outside the admin endpoints.
type ProviderSettings struct {
	Provider         ProviderKey       `json:"provider"`
	Enabled          bool              `json:"enabled"`
	APIKey           string            `json:"apiKey,omitempty"`
	APISecret        string            `json:"apiSecret,omitempty"`
	AdditionalConfig map[string]string `json:"additionalConfig,omitempty"`
	Priority         int               `json:"priority"`
}

// SearchSettings is the singleton quota-distribution policy read on every
// search. MaxPropertiesPerProvider nil means auto-distribute
// MaxPropertiesTotal across the active providers.
type SearchSettings struct {
	MaxPropertiesTotal       int  `json:"maxPropertiesTotal"`
	MaxPropertiesPerProvider *int `json:"maxPropertiesPerProvider"`
	MaxPropertiesForAI       int  `json:"maxPropertiesForAi"`
	MinPropertiesPerProvider int  `json:"minPropertiesPerProvider"`
}

// DefaultSearchSettings applies until an admin writes a row, and whenever the
// backing store is unreachable.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		MaxPropertiesTotal:       60,
		MaxPropertiesPerProvider: nil,
		MaxPropertiesForAI:       60,
		MinPropertiesPerProvider: 5,
	}
}

// NormalizeSearchSettings clamps a stored row back into a usable shape so a
// partially-written or corrupted row never breaks quota math.
func NormalizeSearchSettings(s SearchSettings) SearchSettings {
	defaults := DefaultSearchSettings()
	if s.MaxPropertiesTotal <= 0 {
		s.MaxPropertiesTotal = defaults.MaxPropertiesTotal
	}
	if s.MaxPropertiesForAI <= 0 {
		s.MaxPropertiesForAI = defaults.MaxPropertiesForAI
	}
	if s.MinPropertiesPerProvider <= 0 {
		s.MinPropertiesPerProvider = defaults.MinPropertiesPerProvider
	}
	if s.MaxPropertiesPerProvider != nil && *s.MaxPropertiesPerProvider <= 0 {
		s.MaxPropertiesPerProvider = nil
	}
	return s
}
