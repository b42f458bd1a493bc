package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	codes "github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockBinanceAPIClient implements BinanceAPIClient for testing.
type mockBinanceAPIClient struct {
	klines    []*binance.Kline
	klinesErr error
	// For pagination testing - returns different results on subsequent calls
	callCount     int
	klinesPerCall [][]*binance.Kline
	errorsPerCall []error
	starts        []int64
	limit         int
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &mockBinanceKlinesService{client: m}
}

type mockBinanceKlinesService struct {
	client   *mockBinanceAPIClient
	symbol   string
	interval string
	start    int64
	end      int64
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.symbol = symbol
	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.interval = interval
	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.start = startTime
	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.end = endTime
	return m
}

func (m *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	m.client.limit = limit
	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	m.client.starts = append(m.client.starts, m.start)

	// If we have per-call data, use it
	if len(m.client.klinesPerCall) > 0 {
		idx := m.client.callCount
		m.client.callCount++
		if idx < len(m.client.klinesPerCall) {
			var err error
			if idx < len(m.client.errorsPerCall) {
				err = m.client.errorsPerCall[idx]
			}
			return m.client.klinesPerCall[idx], err
		}
		return nil, nil
	}
	m.client.callCount++
	// Otherwise use single response
	return m.client.klines, m.client.klinesErr
}

func fullKlinePage(startMs int64, n int) []*binance.Kline {
	page := make([]*binance.Kline, n)
	for i := 0; i < n; i++ {
		page[i] = &binance.Kline{
			OpenTime:  startMs + int64(i*60000),
			Open:      "42000.50",
			High:      "42500.00",
			Low:       "41800.00",
			Close:     "42300.00",
			Volume:    "1000.5",
			CloseTime: startMs + int64(i*60000) + 59999,
		}
	}

	return page
}

type BinanceClientTestSuite struct {
	suite.Suite
	from time.Time
	to   time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.to = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
}

func (suite *BinanceClientTestSuite) TestNewBinanceClient() {
	client, err := NewBinanceClient()
	suite.NoError(err)
	suite.NotNil(client)

	binanceClient, ok := client.(*BinanceClient)
	suite.True(ok)

	_, ok = binanceClient.apiClient.(*binanceClientWrapper)
	suite.True(ok, "apiClient should be a binanceClientWrapper")
	suite.Equal("binance", client.Name())
}

func (suite *BinanceClientTestSuite) TestFetchHistorySinglePage() {
	mockAPI := &mockBinanceAPIClient{
		klines: []*binance.Kline{
			{
				OpenTime:  1704067200000,
				Open:      "42000.50",
				High:      "42500.00",
				Low:       "41800.00",
				Close:     "42300.00",
				Volume:    "1000.5",
				CloseTime: 1704067259999,
			},
		},
	}
	client := NewBinanceClientWithAPI(mockAPI)

	quotes, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.IntervalOneMinute)
	suite.Require().NoError(err)
	suite.Require().Len(quotes, 1)

	suite.Equal("BTCUSDT", quotes[0].Symbol)
	suite.Equal(time.UnixMilli(1704067200000).UTC(), quotes[0].Time)
	suite.Equal(42000.50, quotes[0].Open)
	suite.Equal(42300.00, quotes[0].Close)
	suite.Equal(1000.5, quotes[0].Volume)
	suite.Equal(1, mockAPI.callCount)
	suite.Equal(binancePageLimit, mockAPI.limit)
	suite.Equal([]int64{suite.from.UnixMilli()}, mockAPI.starts)
}

func (suite *BinanceClientTestSuite) TestFetchHistoryPagination() {
	start := suite.from.UnixMilli()
	firstPage := fullKlinePage(start, binancePageLimit)
	secondPage := fullKlinePage(start+int64(binancePageLimit*60000), 1)

	mockAPI := &mockBinanceAPIClient{
		klinesPerCall: [][]*binance.Kline{firstPage, secondPage},
	}
	client := NewBinanceClientWithAPI(mockAPI)

	quotes, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.IntervalOneMinute)
	suite.NoError(err)
	suite.Len(quotes, binancePageLimit+1)
	suite.Equal(2, mockAPI.callCount)
	suite.Equal(firstPage[binancePageLimit-1].CloseTime+1, mockAPI.starts[1])
}

func (suite *BinanceClientTestSuite) TestFetchHistoryPaginationStopsAtEnd() {
	// a full page that already reaches the end time must not trigger another call
	to := suite.from.Add(time.Duration(binancePageLimit) * time.Minute)
	mockAPI := &mockBinanceAPIClient{
		klinesPerCall: [][]*binance.Kline{fullKlinePage(suite.from.UnixMilli(), binancePageLimit)},
	}
	client := NewBinanceClientWithAPI(mockAPI)

	quotes, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, to, types.IntervalOneMinute)
	suite.NoError(err)
	suite.Len(quotes, binancePageLimit)
	suite.Equal(1, mockAPI.callCount)
}

func (suite *BinanceClientTestSuite) TestFetchHistoryAPIErrorOnSecondPage() {
	mockAPI := &mockBinanceAPIClient{
		klinesPerCall: [][]*binance.Kline{fullKlinePage(suite.from.UnixMilli(), binancePageLimit), nil},
		errorsPerCall: []error{nil, errors.New("rate limited")},
	}
	client := NewBinanceClientWithAPI(mockAPI)

	quotes, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.IntervalOneMinute)
	suite.Error(err)
	suite.Nil(quotes)
	suite.True(codes.HasCode(err, codes.ErrCodeMarketDataFetchFailed))
}

func (suite *BinanceClientTestSuite) TestFetchHistoryUnknownSymbol() {
	//nolint:exhaustruct // only the code matters here
	mockAPI := &mockBinanceAPIClient{klinesErr: &common.APIError{Code: -1121, Message: "Invalid symbol."}}
	client := NewBinanceClientWithAPI(mockAPI)

	_, err := client.FetchHistory(context.Background(), "NOPE", suite.from, suite.to, types.IntervalOneHour)
	suite.True(codes.HasCode(err, codes.ErrCodeUnknownSymbol))
}

func (suite *BinanceClientTestSuite) TestFetchHistoryOtherAPIError() {
	//nolint:exhaustruct // only the code matters here
	mockAPI := &mockBinanceAPIClient{klinesErr: &common.APIError{Code: -1003, Message: "Too many requests."}}
	client := NewBinanceClientWithAPI(mockAPI)

	_, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.IntervalOneHour)
	suite.True(codes.HasCode(err, codes.ErrCodeMarketDataFetchFailed))
}

func (suite *BinanceClientTestSuite) TestFetchHistoryInvalidNumbers() {
	mockAPI := &mockBinanceAPIClient{
		klines: []*binance.Kline{
			{
				OpenTime:  1704067200000,
				Open:      "invalid",
				High:      "42500.00",
				Low:       "41800.00",
				Close:     "42300.00",
				Volume:    "1",
				CloseTime: 1704067259999,
			},
		},
	}
	client := NewBinanceClientWithAPI(mockAPI)

	_, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.IntervalOneMinute)
	suite.True(codes.HasCode(err, codes.ErrCodeMarketDataParseFailed))
}

func (suite *BinanceClientTestSuite) TestFetchHistoryInvalidInterval() {
	mockAPI := &mockBinanceAPIClient{}
	client := NewBinanceClientWithAPI(mockAPI)

	_, err := client.FetchHistory(context.Background(), "BTCUSDT", suite.from, suite.to, types.Interval("2h"))
	suite.True(codes.HasCode(err, codes.ErrCodeInvalidInterval))
	suite.Equal(0, mockAPI.callCount)
}
