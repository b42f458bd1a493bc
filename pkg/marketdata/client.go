// Package marketdata is the quote fetcher: it validates a history request,
// runs exactly one provider query for it and packages the result as a batch.
// It never retries and never caches; the dispatcher owns both decisions.
package marketdata

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType  provider.ProviderType `validate:"required,oneof=yahoo polygon binance"`
	PolygonApiKey string                `validate:"required_if=ProviderType polygon"`
}

// FetchParams holds the validated parameters of one history query.
type FetchParams struct {
	Symbol   string         `validate:"required"`
	From     time.Time      `validate:"required"`
	To       time.Time      `validate:"required,gtefield=From"`
	Interval types.Interval `validate:"required,interval"`
}

// Client fetches quote batches from a single provider.
type Client struct {
	provider provider.Provider
	validate *validator.Validate
	log      *logger.Logger
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	validate := newValidator()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	marketProvider, err := provider.NewMarketDataProvider(config.ProviderType, provider.Options{
		PolygonAPIKey: config.PolygonApiKey,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		provider: marketProvider,
		validate: validate,
		log:      log,
	}, nil
}

// NewClientWithProvider creates a client around an existing provider.
func NewClientWithProvider(p provider.Provider, log *logger.Logger) *Client {
	return &Client{
		provider: p,
		validate: newValidator(),
		log:      log,
	}
}

// ProviderName returns the name of the backing provider.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Fetch queries the provider once for the request's symbol and range. The
// returned batch carries the request's tick id, symbol and range; quotes are
// left in provider order.
func (c *Client) Fetch(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error) {
	params := FetchParams{
		Symbol:   req.Symbol,
		From:     req.Range.From,
		To:       req.Range.To,
		Interval: req.Range.Interval,
	}

	if err := c.ValidateParams(params); err != nil {
		return types.EmptyBatch(req), err
	}

	quotes, err := c.provider.FetchHistory(ctx, params.Symbol, params.From, params.To, params.Interval)
	if err != nil {
		var coded *errors.Error
		if errors.As(err, &coded) {
			return types.EmptyBatch(req), err
		}

		return types.EmptyBatch(req), errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "fetch %s from %s", req.Symbol, c.provider.Name())
	}

	c.log.Debug("Fetched quotes",
		zap.String("tick_id", req.TickID),
		zap.String("symbol", req.Symbol),
		zap.String("provider", c.provider.Name()),
		zap.Int("count", len(quotes)),
	)

	return types.QuoteBatch{
		TickID: req.TickID,
		Symbol: req.Symbol,
		Range:  req.Range,
		Quotes: quotes,
	}, nil
}

// ValidateParams checks a query before it reaches the provider. The first
// failing field decides the error code.
func (c *Client) ValidateParams(params FetchParams) error {
	err := c.validate.Struct(params)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid fetch parameters", err)
	}

	switch fieldErrs[0].Field() {
	case "Symbol":
		return errors.Wrap(errors.ErrCodeMissingParameter, "symbol is required", err)
	case "From", "To":
		return errors.Wrapf(errors.ErrCodeInvalidTimeRange, err, "invalid time range %s..%s",
			params.From.Format(time.RFC3339), params.To.Format(time.RFC3339))
	case "Interval":
		return errors.Wrapf(errors.ErrCodeInvalidInterval, err, "unsupported interval %q", params.Interval)
	default:
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid fetch parameters", err)
	}
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// registration only fails for an empty tag or nil func
	_ = validate.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		return types.Interval(fl.Field().String()).IsValid()
	})

	return validate
}
