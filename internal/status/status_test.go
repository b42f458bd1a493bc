package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/stretchr/testify/suite"
)

type StatusTestSuite struct {
	suite.Suite
	counters *Counters
	server   *Server
}

func TestStatusSuite(t *testing.T) {
	suite.Run(t, new(StatusTestSuite))
}

func (suite *StatusTestSuite) SetupTest() {
	suite.counters = NewCounters()
	suite.server = NewServer(":0", suite.counters, func() string { return "running" }, logger.NewNopLogger())
}

func (suite *StatusTestSuite) TestHealthz() {
	rec := httptest.NewRecorder()
	suite.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("ok", rec.Body.String())
}

func (suite *StatusTestSuite) TestStatusReportsCounters() {
	suite.counters.Ticks.Add(3)
	suite.counters.RequestsPublished.Add(6)
	suite.counters.EmptyBatches.Add(1)
	suite.counters.ReportsEmitted.Add(5)

	rec := httptest.NewRecorder()
	suite.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("application/json", rec.Header().Get("Content-Type"))

	var snapshot Snapshot
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snapshot))
	suite.Equal("running", snapshot.State)
	suite.Equal(uint64(3), snapshot.Ticks)
	suite.Equal(uint64(6), snapshot.RequestsPublished)
	suite.Equal(uint64(1), snapshot.EmptyBatches)
	suite.Equal(uint64(5), snapshot.ReportsEmitted)
	suite.Equal(uint64(0), snapshot.StageRestarts)
}

func (suite *StatusTestSuite) TestMethodNotAllowed() {
	rec := httptest.NewRecorder()
	suite.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))

	suite.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (suite *StatusTestSuite) TestConcurrentIncrements() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				suite.counters.BatchesPublished.Add(1)
			}
		}()
	}
	wg.Wait()

	suite.Equal(uint64(1000), suite.counters.Snapshot("").BatchesPublished)
}

func (suite *StatusTestSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- suite.server.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(2 * time.Second):
		suite.Fail("status server did not stop")
	}
}

func (suite *StatusTestSuite) TestAddrWhileStarting() {
	suite.server = NewServer("127.0.0.1:0", suite.counters, nil, logger.NewNopLogger())
	suite.Equal("", suite.server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- suite.server.Run(ctx)
	}()

	// polled from several goroutines while Run binds the listener
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for suite.server.Addr() == "" {
				time.Sleep(time.Millisecond)
			}
		}()
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		suite.FailNow("status server never reported its address")
	}

	resp, err := http.Get("http://" + suite.server.Addr() + "/healthz")
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.NoError(resp.Body.Close())

	cancel()
	suite.NoError(<-done)
}
