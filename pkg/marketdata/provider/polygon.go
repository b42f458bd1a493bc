package provider

import (
	"context"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// polygonPageLimit is the largest page the aggregates endpoint serves.
const polygonPageLimit = 50000

// PolygonAggsIterator abstracts the aggregates iterator for testing.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient abstracts the Polygon REST client for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

// polygonClientWrapper wraps the real Polygon client to implement PolygonAPIClient.
type polygonClientWrapper struct {
	client *polygon.Client
}

func (w *polygonClientWrapper) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return w.client.ListAggs(ctx, params, options...)
}

// PolygonClient reads adjusted aggregate bars from Polygon.io.
type PolygonClient struct {
	apiClient PolygonAPIClient
}

// NewPolygonClient creates a Polygon provider. An API key is required.
func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon: apiKey is required")
	}

	return &PolygonClient{
		apiClient: &polygonClientWrapper{client: polygon.New(apiKey)},
	}, nil
}

// NewPolygonClientWithAPI creates a Polygon provider backed by a custom API client.
func NewPolygonClientWithAPI(api PolygonAPIClient) *PolygonClient {
	return &PolygonClient{
		apiClient: api,
	}
}

func (c *PolygonClient) Name() string {
	return string(ProviderPolygon)
}

func (c *PolygonClient) FetchHistory(ctx context.Context, symbol string, from time.Time, to time.Time, interval types.Interval) ([]types.Quote, error) {
	multiplier, timespan, err := polygonTimespan(interval)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithAdjusted(true).WithLimit(polygonPageLimit)

	iter := c.apiClient.ListAggs(ctx, params)

	quotes := make([]types.Quote, 0)

	for iter.Next() {
		agg := iter.Item()
		quotes = append(quotes, types.Quote{
			Symbol:   symbol,
			Time:     time.Time(agg.Timestamp).UTC(),
			Open:     agg.Open,
			High:     agg.High,
			Low:      agg.Low,
			Close:    agg.Close,
			AdjClose: agg.Close,
			Volume:   agg.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		var resp *models.ErrorResponse
		if errors.As(err, &resp) && resp.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(errors.ErrCodeUnknownSymbol, err, "polygon: unknown symbol %s", symbol)
		}

		return nil, wrapFetch(err, ProviderPolygon, symbol)
	}

	return quotes, nil
}
