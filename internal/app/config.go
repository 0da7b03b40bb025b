package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"homematch/propertysearch/internal/domain"
)

type Config struct {
	HTTPAddr       string
	AdapterTimeout time.Duration
	LogLevel       string
	LogFormat      string
	UserAgent      string
	RedisURL       string
	CacheTTL       time.Duration
	CacheDisabled  bool
	ProviderRPS    float64
	ProviderBurst  int

	ShowcaseAPIKey    string
	ShowcaseEndpoint  string
	BridgeAccessToken string
	BridgeDataset     string
	BridgeEndpoint    string
	RealtorAPIKey     string
	RealtorHost       string
	XposureEnabled    bool
}

func LoadConfig() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		AdapterTimeout: time.Duration(getEnvInt("SEARCH_PROVIDER_TIMEOUT_SECONDS", 8)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("SEARCH_USER_AGENT", "homematch-property-search/1.0"),
		RedisURL:       getEnv("REDIS_URL", ""),
		CacheTTL:       time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 5)) * time.Minute,
		CacheDisabled:  getEnvBool("SEARCH_CACHE_DISABLED", false),
		ProviderRPS:    float64(getEnvInt("SEARCH_PROVIDER_RPS", 5)),
		ProviderBurst:  getEnvInt("SEARCH_PROVIDER_BURST", 5),

		ShowcaseAPIKey:    strings.TrimSpace(os.Getenv("SHOWCASE_API_KEY")),
		ShowcaseEndpoint:  getEnv("SHOWCASE_ENDPOINT", ""),
		BridgeAccessToken: strings.TrimSpace(os.Getenv("BRIDGE_ACCESS_TOKEN")),
		BridgeDataset:     strings.TrimSpace(os.Getenv("BRIDGE_DATASET")),
		BridgeEndpoint:    getEnv("BRIDGE_ENDPOINT", ""),
		RealtorAPIKey:     strings.TrimSpace(os.Getenv("REALTOR_RAPIDAPI_KEY")),
		RealtorHost:       getEnv("REALTOR_RAPIDAPI_HOST", ""),
		XposureEnabled:    getEnvBool("XPOSURE_ENABLED", true),
	}
}

// DefaultProviderSettings converts env-provided credentials into settings
// rows. These back-fill providers the settings store has never seen; a
// remote provider is enabled by default only when its credentials are set.
func (c Config) DefaultProviderSettings() []domain.ProviderSettings {
	rows := make([]domain.ProviderSettings, 0, 4)

	showcase := domain.ProviderSettings{
		Provider: domain.ProviderShowcase,
		Enabled:  c.ShowcaseAPIKey != "",
		APIKey:   c.ShowcaseAPIKey,
		Priority: 1,
	}
	if c.ShowcaseEndpoint != "" {
		showcase.AdditionalConfig = map[string]string{"endpoint": c.ShowcaseEndpoint}
	}
	rows = append(rows, showcase)

	bridge := domain.ProviderSettings{
		Provider: domain.ProviderBridge,
		Enabled:  c.BridgeAccessToken != "" && c.BridgeDataset != "",
		APIKey:   c.BridgeAccessToken,
		Priority: 2,
	}
	bridgeExtra := map[string]string{}
	if c.BridgeDataset != "" {
		bridgeExtra["dataset"] = c.BridgeDataset
	}
	if c.BridgeEndpoint != "" {
		bridgeExtra["endpoint"] = c.BridgeEndpoint
	}
	if len(bridgeExtra) > 0 {
		bridge.AdditionalConfig = bridgeExtra
	}
	rows = append(rows, bridge)

	realtor := domain.ProviderSettings{
		Provider: domain.ProviderRealtor,
		Enabled:  c.RealtorAPIKey != "",
		APIKey:   c.RealtorAPIKey,
		Priority: 3,
	}
	if c.RealtorHost != "" {
		realtor.AdditionalConfig = map[string]string{"host": c.RealtorHost}
	}
	rows = append(rows, realtor)

	rows = append(rows, domain.ProviderSettings{
		Provider: domain.ProviderXposure,
		Enabled:  c.XposureEnabled,
		Priority: 4,
	})

	return rows
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
