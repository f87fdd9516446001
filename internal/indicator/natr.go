package indicator

import (
	"errors"
	"math"
)

// NATR computes the Normalized Average True Range (ATR with Wilder's
// smoothing, expressed as a percentage of the latest close) for the most
// recent candle. The three series must have equal length.
func NATR(highs, lows, closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("natr period must be positive")
	}
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return 0, errors.New("natr series length mismatch")
	}
	if len(closes) < period+1 {
		return 0, ErrInsufficientHistory
	}

	lastClose := closes[len(closes)-1]
	if lastClose == 0 {
		return 0, errors.New("natr undefined for zero close")
	}

	// Seed ATR with a simple average of the first period true ranges, then
	// apply Wilder's smoothing over the rest of the window.
	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(highs[i], lows[i], closes[i-1])
	}
	atr := sum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		tr := trueRange(highs[i], lows[i], closes[i-1])
		atr = (atr*float64(period-1) + tr) / float64(period)
	}

	return atr / lastClose * 100, nil
}

// trueRange is the greatest of high-low, |high-prevClose| and |low-prevClose|.
func trueRange(high, low, prevClose float64) float64 {
	hl := high - low
	hc := math.Abs(high - prevClose)
	lc := math.Abs(low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
