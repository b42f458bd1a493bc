package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

var testFrom = time.Date(2020, 7, 2, 19, 30, 0, 0, time.UTC)

func testRequest(tickID, symbol string) types.FetchRequest {
	return types.FetchRequest{
		TickID: tickID,
		Symbol: symbol,
		Range: types.TimeRange{
			From:     testFrom,
			To:       testFrom.Add(35 * time.Hour),
			Interval: types.IntervalOneHour,
		},
		IssuedAt: testFrom.Add(35 * time.Hour),
	}
}

// scenarioCloses is [1, 2, 3.5, 4.5, 12.2] repeated seven times.
func scenarioCloses() []float64 {
	closes := make([]float64, 0, 35)
	for i := 0; i < 7; i++ {
		closes = append(closes, 1.0, 2.0, 3.5, 4.5, 12.2)
	}

	return closes
}

// chanSink forwards reports to a channel and fails the first failFirst writes.
type chanSink struct {
	reports   chan types.SummaryReport
	failFirst int32
	writes    atomic.Int32
}

func newChanSink(failFirst int32) *chanSink {
	return &chanSink{
		reports:   make(chan types.SummaryReport, 64),
		failFirst: failFirst,
	}
}

func (s *chanSink) Write(report types.SummaryReport) error {
	if s.writes.Add(1) <= s.failFirst {
		return errors.New(errors.ErrCodeStageFailed, "sink unavailable")
	}

	s.reports <- report

	return nil
}
