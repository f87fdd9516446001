package quote

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/indicator"
	"github.com/Alias1177/Quoter/internal/model"
)

// Model derives a reference price and a buy/sell quote pair from a candle
// window. It is stateless: identical input windows yield identical quotes.
type Model struct {
	baseSpread float64
	period     int
	logger     zerolog.Logger
}

// New creates a quote model with the given base spread fraction and
// indicator period.
func New(baseSpread float64, period int) *Model {
	return &Model{
		baseSpread: baseSpread,
		period:     period,
		logger:     log.With().Str("component", "quote_model").Logger(),
	}
}

// Quote computes a Quote from the candle window, most-recent-last. It returns
// indicator.ErrInsufficientHistory when the window is too short; a quote is
// never built from partial indicator values.
func (m *Model) Quote(candles []model.Candle) (model.Quote, error) {
	if len(candles) == 0 {
		return model.Quote{}, fmt.Errorf("quote: %w", indicator.ErrInsufficientHistory)
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	rsi, err := indicator.RSI(closes, m.period)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote rsi: %w", err)
	}
	natr, err := indicator.NATR(highs, lows, closes, m.period)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote natr: %w", err)
	}

	q := compute(closes[len(closes)-1], rsi, natr, m.baseSpread)

	m.logger.Debug().
		Float64("rsi", rsi).
		Float64("natr", natr).
		Float64("reference", q.Reference).
		Float64("buy", q.Buy).
		Float64("sell", q.Sell).
		Msg("quote computed")

	return q, nil
}

// compute applies the pricing formulas: the reference price is the last close
// skewed by momentum (up to ±5% at RSI extremes), and the quoted spread is
// the base spread widened proportionally to volatility.
func compute(lastClose, rsi, natr, baseSpread float64) model.Quote {
	reference := lastClose * (1 + (rsi-50)/1000)
	spread := baseSpread * (1 + natr/100)

	return model.Quote{
		Reference: reference,
		Buy:       reference * (1 - spread),
		Sell:      reference * (1 + spread),
		Spread:    spread,
		Indicators: model.IndicatorSnapshot{
			RSI:  rsi,
			NATR: natr,
		},
	}
}
