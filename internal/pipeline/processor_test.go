package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/mocks"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ProcessorTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	sink     *mocks.MockReportSink
	bus      *bus.Bus
	batches  *bus.Subscription[types.QuoteBatch]
	counters *status.Counters
	proc     *Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}

func (suite *ProcessorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.sink = mocks.NewMockReportSink(suite.ctrl)
	suite.bus = bus.New()
	suite.counters = status.NewCounters()

	var err error
	suite.batches, err = bus.Subscribe(suite.bus, BatchTopic)
	suite.Require().NoError(err)

	suite.proc = NewProcessor(suite.batches, suite.sink, 30, suite.counters, logger.NewNopLogger())
}

func (suite *ProcessorTestSuite) TearDownTest() {
	suite.bus.Close()
}

func scenarioBatch(quotes []types.Quote) types.QuoteBatch {
	req := testRequest("t1", "XYZ")

	return types.QuoteBatch{TickID: req.TickID, Symbol: req.Symbol, Range: req.Range, Quotes: quotes}
}

func (suite *ProcessorTestSuite) TestEmptyBatchIsSkipped() {
	// No Write expectation: any call fails the test.
	err := suite.proc.Process(types.EmptyBatch(testRequest("t1", "BAD")))

	suite.NoError(err)
	suite.Equal(uint64(0), suite.counters.ReportsEmitted.Load())
}

func (suite *ProcessorTestSuite) TestScenarioReport() {
	quotes := mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, scenarioCloses())

	var got types.SummaryReport
	suite.sink.EXPECT().Write(gomock.Any()).DoAndReturn(func(report types.SummaryReport) error {
		got = report

		return nil
	}).Times(1)

	suite.Require().NoError(suite.proc.Process(scenarioBatch(quotes)))

	suite.True(testFrom.Equal(got.PeriodStart))
	suite.Equal("XYZ", got.Symbol)
	suite.InDelta(12.2, got.Price, 1e-9)
	suite.InDelta(1120.0, got.PercentChange, 1e-9)
	suite.InDelta(1.0, got.Min, 1e-9)
	suite.InDelta(12.2, got.Max, 1e-9)
	suite.InDelta(4.64, got.TrailingAverage, 1e-9)
	suite.Equal(uint64(1), suite.counters.ReportsEmitted.Load())
}

func (suite *ProcessorTestSuite) TestUnorderedQuotesAreSorted() {
	quotes := mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, scenarioCloses())
	shuffled := mocks.NewQuoteGenerator(7).Shuffle(quotes)

	var got types.SummaryReport
	suite.sink.EXPECT().Write(gomock.Any()).DoAndReturn(func(report types.SummaryReport) error {
		got = report

		return nil
	}).Times(1)

	suite.Require().NoError(suite.proc.Process(scenarioBatch(shuffled)))

	suite.InDelta(12.2, got.Price, 1e-9)
	suite.InDelta(1120.0, got.PercentChange, 1e-9)
	suite.InDelta(4.64, got.TrailingAverage, 1e-9)
}

func (suite *ProcessorTestSuite) TestShortSeriesHasZeroTrailingAverage() {
	quotes := mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, []float64{2, 4, 3})

	var got types.SummaryReport
	suite.sink.EXPECT().Write(gomock.Any()).DoAndReturn(func(report types.SummaryReport) error {
		got = report

		return nil
	}).Times(1)

	suite.Require().NoError(suite.proc.Process(scenarioBatch(quotes)))

	suite.InDelta(3.0, got.Price, 1e-9)
	suite.InDelta(50.0, got.PercentChange, 1e-9)
	suite.InDelta(1.0, got.AbsoluteChange, 1e-9)
	suite.InDelta(0.0, got.TrailingAverage, 1e-9)
}

func (suite *ProcessorTestSuite) TestNaNCloseIsRejected() {
	quotes := mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, []float64{1, math.NaN(), 3})

	err := suite.proc.Process(scenarioBatch(quotes))

	suite.NoError(err)
	suite.Equal(uint64(1), suite.counters.RejectedBatches.Load())
	suite.Equal(uint64(0), suite.counters.ReportsEmitted.Load())
}

func (suite *ProcessorTestSuite) TestSinkFailureIsStageFailure() {
	quotes := mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, []float64{1, 2})
	suite.sink.EXPECT().Write(gomock.Any()).Return(errors.New(errors.ErrCodeUnknown, "broken pipe")).Times(1)

	err := suite.proc.Process(scenarioBatch(quotes))

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStageFailed))
	suite.Contains(err.Error(), "XYZ")
	suite.Equal(uint64(0), suite.counters.ReportsEmitted.Load())
}

func (suite *ProcessorTestSuite) TestRunProcessesInArrivalOrder() {
	first := scenarioBatch(mocks.QuotesFromCloses("AAA", testFrom, time.Hour, []float64{1, 2}))
	first.Symbol = "AAA"
	second := scenarioBatch(mocks.QuotesFromCloses("BBB", testFrom, time.Hour, []float64{3, 4}))
	second.Symbol = "BBB"

	gomock.InOrder(
		suite.sink.EXPECT().Write(gomock.Cond(func(x any) bool { r, ok := x.(types.SummaryReport); return ok && r.Symbol == "AAA" })).Return(nil),
		suite.sink.EXPECT().Write(gomock.Cond(func(x any) bool { r, ok := x.(types.SummaryReport); return ok && r.Symbol == "BBB" })).Return(nil),
	)

	ctx := context.Background()
	suite.Require().NoError(bus.Publish(ctx, suite.bus, BatchTopic, first))
	suite.Require().NoError(bus.Publish(ctx, suite.bus, BatchTopic, second))

	done := make(chan error, 1)
	go func() {
		done <- suite.proc.Run(ctx)
	}()

	suite.Eventually(func() bool { return suite.counters.ReportsEmitted.Load() == 2 }, time.Second, 5*time.Millisecond)
	suite.batches.Unsubscribe()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.Fail("processor did not stop after its subscription closed")
	}
}

func (suite *ProcessorTestSuite) TestRunReturnsSinkFailure() {
	suite.sink.EXPECT().Write(gomock.Any()).Return(errors.New(errors.ErrCodeUnknown, "broken pipe"))

	ctx := context.Background()
	batch := scenarioBatch(mocks.QuotesFromCloses("XYZ", testFrom, time.Hour, []float64{1, 2}))
	suite.Require().NoError(bus.Publish(ctx, suite.bus, BatchTopic, batch))

	err := suite.proc.Run(ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeStageFailed))
}

func (suite *ProcessorTestSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite.NoError(suite.proc.Run(ctx))
}

func (suite *ProcessorTestSuite) TestWindowFallback() {
	p := NewProcessor(suite.batches, suite.sink, 1, suite.counters, logger.NewNopLogger())

	suite.Equal(30, p.window)
}
