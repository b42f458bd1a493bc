// Package provider adapts third-party market data APIs to a single history
// query returning time-stamped quotes.
package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderYahoo   ProviderType = "yahoo"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// Provider fetches historical quotes for one symbol.
type Provider interface {
	// Name returns the provider type the instance was built for.
	Name() string
	// FetchHistory returns the quotes of symbol between from and to (inclusive)
	// at the given interval. Quotes are not guaranteed to be sorted.
	// example:
	// FetchHistory(ctx, "AAPL", time.Date(2020, 7, 2, 19, 30, 0, 0, time.UTC), time.Now(), types.IntervalOneHour)
	FetchHistory(ctx context.Context, symbol string, from time.Time, to time.Time, interval types.Interval) ([]types.Quote, error)
}

// Options carries provider credentials.
type Options struct {
	PolygonAPIKey string
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, opts Options) (Provider, error) {
	switch providerType {
	case ProviderYahoo:
		return NewYahooClient(), nil
	case ProviderPolygon:
		return NewPolygonClient(opts.PolygonAPIKey)
	case ProviderBinance:
		return NewBinanceClient()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// wrapFetch marks err as a fetch failure unless it already carries a code.
func wrapFetch(err error, provider ProviderType, symbol string) error {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return err
	}

	return errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "%s: fetch %s", provider, symbol)
}
