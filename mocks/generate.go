package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/tickerwatch/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_fetcher.go -package=mocks github.com/rxtech-lab/tickerwatch/internal/pipeline Fetcher,ReportSink
