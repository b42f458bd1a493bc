package provider

import (
	"github.com/piquette/finance-go/datetime"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// polygonTimespan converts an interval to the multiplier and timespan pair
// Polygon's aggregates endpoint expects.
func polygonTimespan(interval types.Interval) (int, models.Timespan, error) {
	switch interval {
	case types.IntervalOneMinute:
		return 1, models.Minute, nil
	case types.IntervalFiveMinutes:
		return 5, models.Minute, nil
	case types.IntervalFifteenMinutes:
		return 15, models.Minute, nil
	case types.IntervalThirtyMinutes:
		return 30, models.Minute, nil
	case types.IntervalOneHour:
		return 1, models.Hour, nil
	case types.IntervalOneDay:
		return 1, models.Day, nil
	case types.IntervalOneWeek:
		return 1, models.Week, nil
	case types.IntervalOneMonth:
		return 1, models.Month, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for Polygon: %s", interval)
	}
}

// yahooInterval converts an interval to the chart API's range step.
// Ref: https://query1.finance.yahoo.com/v8/finance/chart
func yahooInterval(interval types.Interval) (datetime.Interval, error) {
	switch interval {
	case types.IntervalOneMinute, types.IntervalFiveMinutes, types.IntervalFifteenMinutes,
		types.IntervalThirtyMinutes, types.IntervalOneHour, types.IntervalOneDay:
		return datetime.Interval(interval), nil
	case types.IntervalOneWeek:
		return datetime.Interval("1wk"), nil
	case types.IntervalOneMonth:
		return datetime.Interval("1mo"), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for Yahoo: %s", interval)
	}
}

// binanceInterval converts an interval to a kline interval string.
// Binance intervals: 1m, 3m, 5m, 15m, 30m, 1h, 2h, 4h, 6h, 8h, 12h, 1d, 3d, 1w, 1M
// Ref: https://binance-docs.github.io/apidocs/spot/en/#kline-candlestick-data
func binanceInterval(interval types.Interval) (string, error) {
	if !interval.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval for Binance: %s", interval)
	}

	return string(interval), nil
}
