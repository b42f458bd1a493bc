package provider

import (
	"context"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// YahooChartIterator abstracts the chart iterator for testing.
type YahooChartIterator interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooChartAPI abstracts the Yahoo chart endpoint for testing.
type YahooChartAPI interface {
	Chart(params *chart.Params) YahooChartIterator
}

// yahooChartWrapper calls the real finance-go chart endpoint.
type yahooChartWrapper struct{}

func (yahooChartWrapper) Chart(params *chart.Params) YahooChartIterator {
	return chart.Get(params)
}

// YahooClient reads bars from the Yahoo Finance chart API.
type YahooClient struct {
	apiClient YahooChartAPI
}

// NewYahooClient creates a Yahoo provider. No credentials are needed.
func NewYahooClient() Provider {
	return &YahooClient{
		apiClient: yahooChartWrapper{},
	}
}

// NewYahooClientWithAPI creates a Yahoo provider backed by a custom API client.
func NewYahooClientWithAPI(api YahooChartAPI) *YahooClient {
	return &YahooClient{
		apiClient: api,
	}
}

func (c *YahooClient) Name() string {
	return string(ProviderYahoo)
}

// FetchHistory iterates the chart bars of symbol. The chart endpoint takes no
// context, so cancellation is observed between bars.
func (c *YahooClient) FetchHistory(ctx context.Context, symbol string, from time.Time, to time.Time, interval types.Interval) ([]types.Quote, error) {
	step, err := yahooInterval(interval)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: step,
	}

	iter := c.apiClient.Chart(params)

	quotes := make([]types.Quote, 0)

	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bar := iter.Bar()
		if bar == nil {
			continue
		}

		quotes = append(quotes, types.Quote{
			Symbol:   symbol,
			Time:     time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:     bar.Open.InexactFloat64(),
			High:     bar.High.InexactFloat64(),
			Low:      bar.Low.InexactFloat64(),
			Close:    bar.Close.InexactFloat64(),
			AdjClose: bar.AdjClose.InexactFloat64(),
			Volume:   float64(bar.Volume),
		})
	}

	if err := iter.Err(); err != nil {
		if isYahooNotFound(err) {
			return nil, errors.Wrapf(errors.ErrCodeUnknownSymbol, err, "yahoo: unknown symbol %s", symbol)
		}

		return nil, wrapFetch(err, ProviderYahoo, symbol)
	}

	return quotes, nil
}

// isYahooNotFound detects the chart API's answer for delisted or unknown symbols.
func isYahooNotFound(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "not found") || strings.Contains(msg, "no data found")
}
