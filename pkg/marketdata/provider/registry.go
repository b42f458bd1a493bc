package provider

import (
	"sort"

	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderYahoo: {
		Name:         string(ProviderYahoo),
		DisplayName:  "Yahoo Finance",
		Description:  "Free delayed quotes and history for stocks, ETFs, indices and currencies",
		RequiresAuth: false,
	},
	ProviderPolygon: {
		Name:         string(ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with real-time and historical OHLCV data",
		RequiresAuth: true,
	},
	ProviderBinance: {
		Name:         string(ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency exchange with extensive market data for crypto trading pairs",
		RequiresAuth: false,
	},
}

// GetSupportedProviders returns all supported provider names, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// ListProviderInfo returns metadata for every provider, sorted by name.
func ListProviderInfo() []ProviderInfo {
	names := GetSupportedProviders()
	infos := make([]ProviderInfo, 0, len(names))

	for _, name := range names {
		infos = append(infos, providerRegistry[ProviderType(name)])
	}

	return infos
}
