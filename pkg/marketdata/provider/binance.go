package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

const (
	// binancePageLimit is the largest kline page the REST API serves.
	binancePageLimit = 1000
	// binanceInvalidSymbol is the API error code for an unknown trading pair.
	binanceInvalidSymbol = -1121
)

// BinanceKlinesService abstracts the klines service for testing.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient abstracts the Binance client for testing.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

// binanceClientWrapper wraps the real Binance client to implement BinanceAPIClient.
type binanceClientWrapper struct {
	client *binance.Client
}

func (w *binanceClientWrapper) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesServiceWrapper{service: w.client.NewKlinesService()}
}

type binanceKlinesServiceWrapper struct {
	service *binance.KlinesService
}

func (w *binanceKlinesServiceWrapper) Symbol(symbol string) BinanceKlinesService {
	w.service.Symbol(symbol)

	return w
}

func (w *binanceKlinesServiceWrapper) Interval(interval string) BinanceKlinesService {
	w.service.Interval(interval)

	return w
}

func (w *binanceKlinesServiceWrapper) StartTime(startTime int64) BinanceKlinesService {
	w.service.StartTime(startTime)

	return w
}

func (w *binanceKlinesServiceWrapper) EndTime(endTime int64) BinanceKlinesService {
	w.service.EndTime(endTime)

	return w
}

func (w *binanceKlinesServiceWrapper) Limit(limit int) BinanceKlinesService {
	w.service.Limit(limit)

	return w
}

func (w *binanceKlinesServiceWrapper) Do(ctx context.Context) ([]*binance.Kline, error) {
	return w.service.Do(ctx)
}

// BinanceClient reads klines from the public Binance spot API.
type BinanceClient struct {
	apiClient BinanceAPIClient
}

// NewBinanceClient creates a Binance provider. Klines are public, so no keys are used.
func NewBinanceClient() (Provider, error) {
	return &BinanceClient{
		apiClient: &binanceClientWrapper{client: binance.NewClient("", "")},
	}, nil
}

// NewBinanceClientWithAPI creates a Binance provider backed by a custom API client.
func NewBinanceClientWithAPI(api BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient: api,
	}
}

func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// FetchHistory pages through klines until the range is covered or a short
// page signals the end of the data.
func (c *BinanceClient) FetchHistory(ctx context.Context, symbol string, from time.Time, to time.Time, interval types.Interval) ([]types.Quote, error) {
	klineInterval, err := binanceInterval(interval)
	if err != nil {
		return nil, err
	}

	endTimeMillis := to.UnixMilli()
	currentStartTime := from.UnixMilli()

	quotes := make([]types.Quote, 0)

	for {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval(klineInterval).
			StartTime(currentStartTime).
			EndTime(endTimeMillis).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			var apiErr *common.APIError
			if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
				return nil, errors.Wrapf(errors.ErrCodeUnknownSymbol, err, "binance: unknown symbol %s", symbol)
			}

			return nil, wrapFetch(err, ProviderBinance, symbol)
		}

		page, err := convertKlines(symbol, klines)
		if err != nil {
			return nil, err
		}

		quotes = append(quotes, page...)

		if len(klines) < binancePageLimit {
			break
		}

		// close time of the last kline + 1ms avoids duplicates
		currentStartTime = klines[len(klines)-1].CloseTime + 1
		if currentStartTime >= endTimeMillis {
			break
		}
	}

	return quotes, nil
}

// convertKlines parses Binance's string-encoded kline fields.
func convertKlines(symbol string, klines []*binance.Kline) ([]types.Quote, error) {
	quotes := make([]types.Quote, 0, len(klines))

	for _, k := range klines {
		values := make([]float64, 5)
		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "binance: kline %s at %d", symbol, k.OpenTime)
			}

			values[i] = v
		}

		quotes = append(quotes, types.Quote{
			Symbol:   symbol,
			Time:     time.UnixMilli(k.OpenTime).UTC(),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			AdjClose: values[3],
			Volume:   values[4],
		})
	}

	return quotes, nil
}
