package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/types"
)

// QuoteGenerator generates quote series for tests and benchmarks.
type QuoteGenerator struct {
	rng *rand.Rand
}

// NewQuoteGenerator creates a new QuoteGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewQuoteGenerator(seed int64) *QuoteGenerator {
	return &QuoteGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how quotes are generated.
type GeneratorConfig struct {
	Symbol    string
	StartTime time.Time
	// Interval is the duration between each quote
	Interval     time.Duration
	Count        int
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per quote)
	Volatility float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:       "TEST",
		StartTime:    time.Date(2020, 7, 2, 19, 30, 0, 0, time.UTC),
		Interval:     time.Hour,
		Count:        100,
		InitialPrice: 100.0,
		Volatility:   0.01,
	}
}

// Generate creates an ascending quote series following a geometric random walk.
func (g *QuoteGenerator) Generate(config GeneratorConfig) []types.Quote {
	quotes := make([]types.Quote, config.Count)
	price := config.InitialPrice
	current := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := price

		// Box-Muller transform for a normal step
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		quotes[i] = types.Quote{
			Symbol:   config.Symbol,
			Time:     current,
			Open:     roundToDecimals(open, 4),
			High:     roundToDecimals(math.Max(open, closePrice), 4),
			Low:      roundToDecimals(math.Min(open, closePrice), 4),
			Close:    roundToDecimals(closePrice, 4),
			AdjClose: roundToDecimals(closePrice, 4),
			Volume:   float64(1000 + g.rng.Intn(1000)),
		}

		price = closePrice
		current = current.Add(config.Interval)
	}

	return quotes
}

// Shuffle returns a copy of quotes in random order, the way some providers
// deliver them.
func (g *QuoteGenerator) Shuffle(quotes []types.Quote) []types.Quote {
	out := make([]types.Quote, len(quotes))
	copy(out, quotes)
	g.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	return out
}

// QuotesFromCloses builds a series with the given closing prices, one quote
// per interval starting at start.
func QuotesFromCloses(symbol string, start time.Time, interval time.Duration, closes []float64) []types.Quote {
	quotes := make([]types.Quote, len(closes))
	for i, c := range closes {
		quotes[i] = types.Quote{
			Symbol:   symbol,
			Time:     start.Add(time.Duration(i) * interval),
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			AdjClose: c,
			Volume:   0,
		}
	}

	return quotes
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
