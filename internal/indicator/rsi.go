package indicator

import "errors"

// ErrInsufficientHistory is returned when a candle window is too short for
// the requested indicator period. Callers must treat it as "no value", never
// substitute a default.
var ErrInsufficientHistory = errors.New("insufficient candle history for indicator")

// RSI computes the Relative Strength Index over the close series using
// Wilder's smoothing and returns the value for the most recent close.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("rsi period must be positive")
	}
	if len(closes) < period+1 {
		return 0, ErrInsufficientHistory
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}
